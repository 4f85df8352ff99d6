package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket"
	"github.com/digitalocean/go-libvirt/socket/dialers"

	"github.com/jbweber/virtfleet/internal/config"
)

// DefaultTimeout bounds transport setup when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Client wraps a go-libvirt connection to one hypervisor.
type Client struct {
	libvirt *libvirt.Libvirt
	target  Target
}

// newDialer picks the go-libvirt dialer for a parsed URI.
func newDialer(t Target, host config.HostConfig, timeout time.Duration) (socket.Dialer, error) {
	switch t.Transport {
	case TransportUnix:
		return dialers.NewLocal(
			dialers.WithSocket(t.Socket),
			dialers.WithLocalTimeout(timeout),
		), nil
	case TransportTCP:
		opts := []dialers.RemoteOption{dialers.WithRemoteTimeout(timeout)}
		if t.Port != "" {
			opts = append(opts, dialers.UsePort(t.Port))
		}
		return dialers.NewRemote(t.Host, opts...), nil
	case TransportTLS:
		if t.Port != "" && t.Port != "16514" {
			return nil, fmt.Errorf("qemu+tls only supports the default port 16514, got %s", t.Port)
		}
		return dialers.NewTLS(t.Host), nil
	case TransportSSH:
		conn, err := dialSSH(t, host.SSH, timeout)
		if err != nil {
			return nil, err
		}
		return dialers.NewAlreadyConnected(conn), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", t.Transport)
	}
}

// Connect establishes a connection to the hypervisor described by host.
// It returns a Client that must be closed via Close() when done.
//
// If timeout is zero, defaults to 5 seconds.
func Connect(host config.HostConfig, timeout time.Duration) (*Client, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	t, err := ParseURI(host.URI)
	if err != nil {
		return nil, err
	}

	dialer, err := newDialer(t, host, timeout)
	if err != nil {
		return nil, err
	}

	l := libvirt.NewWithDialer(dialer)
	if err := l.ConnectToURI(libvirt.ConnectURI(t.DriverURI)); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", host.URI, err)
	}

	return &Client{libvirt: l, target: t}, nil
}

// ConnectWithContext establishes a connection with context support for cancellation.
// A connection that completes after ctx is done is closed.
func ConnectWithContext(ctx context.Context, host config.HostConfig, timeout time.Duration) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connection cancelled: %w", err)
	}

	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(host, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Target returns the parsed connection URI.
func (c *Client) Target() Target {
	return c.target
}

// Ping verifies the connection is still alive by calling a simple libvirt API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}
