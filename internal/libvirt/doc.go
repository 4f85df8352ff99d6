// Package libvirt connects to hypervisors through
// github.com/digitalocean/go-libvirt and implements hypervisor.Session.
//
// This package provides:
//   - Connection management for local and remote URIs (unix, tcp, tls, ssh)
//   - Domain XML parsing into VM mirrors
//   - Decoding of libvirt callbacks into internal/event variants
//   - Screenshot streams with idempotent cancellation
//
// Connection Management:
//
// The URI picks the transport. Remote URIs are split into a transport
// address and a driver URI, so qemu+ssh://root@kvm1/system dials kvm1 over
// SSH, tunnels to the remote libvirtd socket, and then opens qemu:///system:
//
//	client, err := libvirt.Connect(config.HostConfig{URI: "qemu+tcp://kvm1/system"}, 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.Ping(); err != nil {
//	    return err
//	}
//
// Sessions:
//
// The hypervisor supervisor never sees go-libvirt types. It dials through a
// Dialer and works on the returned session:
//
//	d := libvirt.NewDialer(cfg, logger)
//	sess, err := d.Dial(ctx, cfg.Hosts[0])
//	if err != nil {
//	    return err
//	}
//	events, err := sess.Subscribe(ctx, event.AllKinds...)
//
// Storage pool events:
//
// go-libvirt does not route storage pool callbacks, so pool lifecycle events
// are synthesized by polling pool state (see storage.Watcher).
//
// Consumer-Side Interfaces:
//
// LibvirtClient embeds the interfaces of internal/metadata and
// internal/storage and adds the domain and event calls a Session needs.
// *libvirt.Libvirt satisfies it implicitly.
package libvirt
