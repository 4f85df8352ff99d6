package hypervisor

import (
	"errors"

	"github.com/jbweber/virtfleet/internal/mirror"
)

var (
	// ErrNotConnected is returned for operations that need a live session.
	ErrNotConnected = errors.New("hypervisor not connected")
	// ErrUnknownHost is returned for host ids that are not configured.
	ErrUnknownHost = errors.New("unknown hypervisor")
	// ErrVMNotFound is returned when no cache holds the requested VM.
	ErrVMNotFound = errors.New("virtual machine not found")
	// ErrPoolNotFound is returned when no cache holds the requested pool.
	ErrPoolNotFound = errors.New("storage pool not found")
	// ErrVolumeNotFound is returned for unknown or malformed volume ids.
	ErrVolumeNotFound = errors.New("storage volume not found")
	// ErrNoDisplay is returned when a VM has no usable display.
	ErrNoDisplay = errors.New("no display available")
)

// Action is the cache transition a change reports.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// EntityKind names the entity a change concerns.
type EntityKind string

const (
	KindVirtualMachine EntityKind = "virtual_machine"
	KindStoragePool    EntityKind = "storage_pool"
)

// Change is emitted to listeners after a cache mutation is committed.
// Exactly one of VM and Pool is set. For destroy it holds the removed
// mirror with its terminal state.
type Change struct {
	Action Action
	Kind   EntityKind
	HostID string
	VM     *mirror.VirtualMachine
	Pool   *mirror.StoragePool
}

// EntityID returns the id of the VM or pool.
func (c Change) EntityID() string {
	switch {
	case c.VM != nil:
		return c.VM.ID
	case c.Pool != nil:
		return c.Pool.ID
	default:
		return ""
	}
}

// ChangeFunc receives changes. It runs on the emitting host's event loop
// and must not block.
type ChangeFunc func(Change)
