package broadcast

import (
	"github.com/jbweber/virtfleet/internal/hypervisor"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload identifies the entity. Attributes is only set for updates.
type Payload struct {
	ID           string         `json:"id"`
	HypervisorID string         `json:"hypervisor_id"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// MessageType returns e.g. "destroy_storage_pool".
func MessageType(action hypervisor.Action, kind hypervisor.EntityKind) string {
	return string(action) + "_" + string(kind)
}

// NewMessage encodes a change. Updates carry the state of the entity, and
// the tag list for virtual machines; nothing else of the mirror is sent.
func NewMessage(c hypervisor.Change) Message {
	msg := Message{
		Type: MessageType(c.Action, c.Kind),
		Payload: Payload{
			ID:           c.EntityID(),
			HypervisorID: c.HostID,
		},
	}
	if c.Action != hypervisor.ActionUpdate {
		return msg
	}

	switch {
	case c.VM != nil:
		tags := c.VM.Tags
		if tags == nil {
			tags = []string{}
		}
		msg.Payload.Attributes = map[string]any{
			"state": c.VM.State.String(),
			"tags":  tags,
		}
	case c.Pool != nil:
		msg.Payload.Attributes = map[string]any{
			"state": c.Pool.State.String(),
		}
	}
	return msg
}
