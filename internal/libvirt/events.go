package libvirt

import (
	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/storage"
)

// lifecycleEvent decodes a domain lifecycle callback.
func lifecycleEvent(m libvirt.DomainEventLifecycleMsg) event.DomainLifecycle {
	return event.DomainLifecycle{
		DomainID: storage.FormatUUID(m.Dom.UUID),
		Name:     m.Dom.Name,
		Type:     event.DomainLifecycleType(m.Event),
		Detail:   int(m.Detail),
	}
}

// metadataEvent decodes a domain metadata change callback. Callbacks of
// other event ids are reported as not ok.
func metadataEvent(raw interface{}) (event.DomainMetadataChange, bool) {
	var msg libvirt.DomainEventCallbackMetadataChangeMsg
	switch m := raw.(type) {
	case *libvirt.DomainEventCallbackMetadataChangeMsg:
		msg = *m
	case libvirt.DomainEventCallbackMetadataChangeMsg:
		msg = m
	default:
		return event.DomainMetadataChange{}, false
	}

	ev := event.DomainMetadataChange{
		DomainID: storage.FormatUUID(msg.Dom.UUID),
		Type:     event.MetadataType(msg.Type),
	}
	if len(msg.Nsuri) > 0 {
		ev.Namespace = msg.Nsuri[0]
	}
	return ev, true
}
