package hypervisor

import (
	"context"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/mirror"
)

// HostInfo holds the attributes read from a host right after connecting.
type HostInfo struct {
	Hostname          string
	LibVersion        string
	HypervisorVersion string
	FreeMemoryBytes   uint64
	Node              v1alpha1.NodeInfo
}

// Dialer opens sessions to hypervisors.
type Dialer interface {
	Dial(ctx context.Context, host config.HostConfig) (Session, error)
}

// Session is one live connection to a hypervisor.
//
// Subscribe returns a single channel carrying every requested kind. Events
// of one kind arrive in the order the host emitted them. The channel is
// closed when the session ends.
type Session interface {
	Info(ctx context.Context) (HostInfo, error)
	// Ping performs a cheap round trip to prove the host still answers.
	Ping(ctx context.Context) error

	ListDomains(ctx context.Context) ([]*mirror.VirtualMachine, error)
	LookupDomain(ctx context.Context, id string) (*mirror.VirtualMachine, error)
	DomainState(ctx context.Context, id string) (state mirror.PowerState, persistent bool, err error)
	DomainTags(ctx context.Context, id string) ([]string, error)
	SetDomainTags(ctx context.Context, id string, tags []string) error
	SetDomainState(ctx context.Context, id string, action PowerAction) error

	ListPools(ctx context.Context) ([]*mirror.StoragePool, error)
	LookupPool(ctx context.Context, id string) (*mirror.StoragePool, error)

	Subscribe(ctx context.Context, kinds ...event.Kind) (<-chan event.Event, error)
	Disconnected() <-chan struct{}

	OpenScreenshot(ctx context.Context, domainID string, display int) (Stream, error)

	Close() error
}

// Stream is a screenshot transfer in progress.
//
// Read returns io.EOF once the frame is complete. Cancel aborts the
// transfer; it may be called any number of times, also after the transfer
// finished, and never fails.
type Stream interface {
	Read(p []byte) (int, error)
	Cancel() error
}
