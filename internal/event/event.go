// Package event defines the push notifications a hypervisor session delivers.
//
// Notifications are decoded once at the session boundary into one of the
// closed set of variants below. Consumers switch on the concrete type:
//
//	switch ev := e.(type) {
//	case event.DomainLifecycle:
//	case event.DomainMetadataChange:
//	case event.PoolLifecycle:
//	case event.PoolRefresh:
//	}
package event

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned for notifications that cannot be applied.
var ErrMalformed = errors.New("malformed event")

// Kind identifies a subscription stream.
type Kind int

const (
	KindDomainLifecycle Kind = iota
	KindDomainMetadataChange
	KindPoolLifecycle
	KindPoolRefresh
)

// AllKinds lists every kind a supervisor subscribes to.
var AllKinds = []Kind{
	KindDomainLifecycle,
	KindDomainMetadataChange,
	KindPoolLifecycle,
	KindPoolRefresh,
}

func (k Kind) String() string {
	switch k {
	case KindDomainLifecycle:
		return "domain_lifecycle"
	case KindDomainMetadataChange:
		return "domain_metadata_change"
	case KindPoolLifecycle:
		return "pool_lifecycle"
	case KindPoolRefresh:
		return "pool_refresh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is implemented only by the variants in this package.
type Event interface {
	Kind() Kind
	// Subject returns the UUID of the domain or pool the event concerns.
	Subject() string
	isEvent()
}

// DomainLifecycleType mirrors libvirt's virDomainEventType values.
type DomainLifecycleType int

const (
	DomainDefined DomainLifecycleType = iota
	DomainUndefined
	DomainStarted
	DomainSuspended
	DomainResumed
	DomainStopped
	DomainShutdown
	DomainPMSuspended
	DomainCrashed
)

var domainLifecycleNames = [...]string{
	"defined", "undefined", "started", "suspended", "resumed",
	"stopped", "shutdown", "pmsuspended", "crashed",
}

func (t DomainLifecycleType) String() string {
	if t < 0 || int(t) >= len(domainLifecycleNames) {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return domainLifecycleNames[t]
}

// MetadataType mirrors libvirt's virDomainMetadataType values.
type MetadataType int

const (
	MetadataDescription MetadataType = iota
	MetadataTitle
	MetadataElement
)

func (t MetadataType) String() string {
	switch t {
	case MetadataDescription:
		return "description"
	case MetadataTitle:
		return "title"
	case MetadataElement:
		return "element"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// PoolLifecycleType mirrors libvirt's virStoragePoolEventLifecycleType values.
type PoolLifecycleType int

const (
	PoolDefined PoolLifecycleType = iota
	PoolUndefined
	PoolStarted
	PoolStopped
	PoolCreated
	PoolDeleted
)

var poolLifecycleNames = [...]string{
	"defined", "undefined", "started", "stopped", "created", "deleted",
}

func (t PoolLifecycleType) String() string {
	if t < 0 || int(t) >= len(poolLifecycleNames) {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return poolLifecycleNames[t]
}

// DomainLifecycle reports a domain state transition.
type DomainLifecycle struct {
	DomainID string
	Name     string
	Type     DomainLifecycleType
	Detail   int
}

// DomainMetadataChange reports a metadata write on a domain.
// Namespace is only set for element metadata.
type DomainMetadataChange struct {
	DomainID  string
	Type      MetadataType
	Namespace string
}

// PoolLifecycle reports a storage pool state transition.
type PoolLifecycle struct {
	PoolID string
	Name   string
	Type   PoolLifecycleType
	Detail int
}

// PoolRefresh reports that a pool's volumes were re-scanned on the host.
type PoolRefresh struct {
	PoolID string
	Name   string
}

func (DomainLifecycle) Kind() Kind      { return KindDomainLifecycle }
func (DomainMetadataChange) Kind() Kind { return KindDomainMetadataChange }
func (PoolLifecycle) Kind() Kind        { return KindPoolLifecycle }
func (PoolRefresh) Kind() Kind          { return KindPoolRefresh }

func (e DomainLifecycle) Subject() string      { return e.DomainID }
func (e DomainMetadataChange) Subject() string { return e.DomainID }
func (e PoolLifecycle) Subject() string        { return e.PoolID }
func (e PoolRefresh) Subject() string          { return e.PoolID }

func (DomainLifecycle) isEvent()      {}
func (DomainMetadataChange) isEvent() {}
func (PoolLifecycle) isEvent()        {}
func (PoolRefresh) isEvent()          {}

// Validate checks that an event carries a subject and a known type.
// Errors wrap ErrMalformed.
func Validate(e Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrMalformed)
	}
	if e.Subject() == "" {
		return fmt.Errorf("%w: %s event without subject", ErrMalformed, e.Kind())
	}

	switch ev := e.(type) {
	case DomainLifecycle:
		if ev.Type < DomainDefined || ev.Type > DomainCrashed {
			return fmt.Errorf("%w: domain %s: unknown lifecycle type %d", ErrMalformed, ev.DomainID, int(ev.Type))
		}
	case DomainMetadataChange:
		if ev.Type < MetadataDescription || ev.Type > MetadataElement {
			return fmt.Errorf("%w: domain %s: unknown metadata type %d", ErrMalformed, ev.DomainID, int(ev.Type))
		}
	case PoolLifecycle:
		if ev.Type < PoolDefined || ev.Type > PoolDeleted {
			return fmt.Errorf("%w: pool %s: unknown lifecycle type %d", ErrMalformed, ev.PoolID, int(ev.Type))
		}
	}
	return nil
}
