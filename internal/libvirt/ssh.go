package libvirt

import (
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/jbweber/virtfleet/internal/config"
)

// sshConn closes the SSH client together with the tunnelled socket.
type sshConn struct {
	net.Conn
	client *ssh.Client
}

func (c *sshConn) Close() error {
	err := c.Conn.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// sshClientConfig builds the client config for a qemu+ssh target.
func sshClientConfig(t Target, cfg *config.SSHConfig, timeout time.Duration) (*ssh.ClientConfig, error) {
	if cfg == nil {
		cfg = &config.SSHConfig{}
	}

	user := t.User
	if user == "" {
		user = cfg.User
	}
	if user == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch {
	case cfg.InsecureIgnoreHostKey:
		hostKeyCallback = ssh.InsecureIgnoreHostKey() // #nosec G106 -- opt-in lab setting
	case cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKeyCallback = cb
	default:
		return nil, fmt.Errorf("ssh host key verification requires known_hosts_file")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// dialSSH opens an SSH connection and tunnels to the remote libvirtd socket.
func dialSSH(t Target, cfg *config.SSHConfig, timeout time.Duration) (net.Conn, error) {
	clientCfg, err := sshClientConfig(t, cfg, timeout)
	if err != nil {
		return nil, err
	}

	client, err := ssh.Dial("tcp", t.Address(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ssh %s: %w", t.Address(), err)
	}

	conn, err := client.Dial("unix", t.Socket)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open libvirt socket %s over ssh: %w", t.Socket, err)
	}

	return &sshConn{Conn: conn, client: client}, nil
}
