// Package broadcast turns committed cache changes into real-time messages.
//
// A Broadcaster is registered as a change listener on every host. It
// encodes each change as
//
//	{"type": "update_virtual_machine", "payload": {"id": ..., "hypervisor_id": ..., "attributes": {...}}}
//
// and hands it to every Publisher. Publishers are fire-and-forget: a slow or
// failed subscriber loses messages, it never delays the event loop that
// produced them.
package broadcast
