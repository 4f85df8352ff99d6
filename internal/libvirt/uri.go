package libvirt

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultSocket is the libvirtd socket of the system driver.
const DefaultSocket = "/var/run/libvirt/libvirt-sock"

// Transport identifies how a session reaches libvirtd.
type Transport string

const (
	TransportUnix Transport = "unix"
	TransportTCP  Transport = "tcp"
	TransportTLS  Transport = "tls"
	TransportSSH  Transport = "ssh"
)

// Target is a parsed connection URI.
//
// qemu+ssh://root@kvm1:2222/system?socket=/run/libvirt/libvirt-sock
// becomes Transport=ssh, Host=kvm1, Port=2222, User=root,
// Socket=/run/libvirt/libvirt-sock, DriverURI=qemu:///system.
type Target struct {
	Transport Transport
	Host      string
	Port      string
	User      string
	Socket    string
	// DriverURI is the URI sent to libvirtd once the transport is up.
	DriverURI string
}

// Address returns host:port, or the host alone when no port was given.
func (t Target) Address() string {
	if t.Port == "" {
		return t.Host
	}
	return net.JoinHostPort(t.Host, t.Port)
}

// ParseURI splits a libvirt connection URI into transport and driver parts.
func ParseURI(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid uri %q: %w", raw, err)
	}

	driver, transport, _ := strings.Cut(u.Scheme, "+")
	if driver != "qemu" {
		return Target{}, fmt.Errorf("unsupported driver %q in uri %q", driver, raw)
	}

	path := u.Path
	if path == "" {
		path = "/system"
	}

	t := Target{
		Host:      u.Hostname(),
		Port:      u.Port(),
		Socket:    u.Query().Get("socket"),
		DriverURI: driver + "://" + path,
	}
	if u.User != nil {
		t.User = u.User.Username()
	}

	switch transport {
	case "", "unix":
		if transport == "" && t.Host != "" {
			// qemu://host/system defaults to TLS like virsh does
			t.Transport = TransportTLS
			break
		}
		t.Transport = TransportUnix
		if t.Socket == "" {
			t.Socket = DefaultSocket
		}
	case "tcp":
		t.Transport = TransportTCP
	case "tls":
		t.Transport = TransportTLS
	case "ssh":
		t.Transport = TransportSSH
		if t.Socket == "" {
			t.Socket = DefaultSocket
		}
		if t.Port == "" {
			t.Port = "22"
		}
	default:
		return Target{}, fmt.Errorf("unsupported transport %q in uri %q", transport, raw)
	}

	if t.Transport != TransportUnix && t.Host == "" {
		return Target{}, fmt.Errorf("uri %q requires a host", raw)
	}

	return t, nil
}
