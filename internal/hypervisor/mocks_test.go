package hypervisor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/mirror"
)

const testNS = "https://virtfleet.dev/xmlns/tags"

// mockSession is a mock implementation of Session backed by maps.
type mockSession struct {
	mu sync.Mutex

	vms          map[string]*mirror.VirtualMachine
	pools        map[string]*mirror.StoragePool
	tags         map[string][]string
	events       chan event.Event
	disconnected chan struct{}

	// For controlling behavior
	InfoErr        error
	SubscribeErr   error
	ListErr        error
	LookupErr      error
	StateErr       error
	pingErr        error
	pingHang       bool
	ScreenshotFunc func(ctx context.Context, domainID string, display int) (Stream, error)

	// For verification
	closeCalls   int
	lookupCalls  int
	setTagsCalls int
	lastSetTags  []string
	pingCalls    int
	actions      []PowerAction
	subscribed   []event.Kind
}

func newMockSession() *mockSession {
	return &mockSession{
		vms:          make(map[string]*mirror.VirtualMachine),
		pools:        make(map[string]*mirror.StoragePool),
		tags:         make(map[string][]string),
		events:       make(chan event.Event, 16),
		disconnected: make(chan struct{}),
	}
}

func (m *mockSession) addVM(vm *mirror.VirtualMachine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vms[vm.ID] = vm.Clone()
}

func (m *mockSession) addPool(p *mirror.StoragePool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[p.ID] = p.Clone()
}

func (m *mockSession) setState(id string, state mirror.PowerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vms[id].State = state
}

func (m *mockSession) setTags(id string, tags []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[id] = tags
}

// drop simulates the host closing the connection.
func (m *mockSession) drop() {
	close(m.disconnected)
}

func (m *mockSession) Info(ctx context.Context) (HostInfo, error) {
	if m.InfoErr != nil {
		return HostInfo{}, m.InfoErr
	}
	return HostInfo{
		Hostname:          "kvm1.example",
		LibVersion:        "10.0.0",
		HypervisorVersion: "8.2.0",
		Node:              v1alpha1.NodeInfo{CPUModel: "x86_64", CPUs: 8, MaxVCPUs: 240, GuestTypes: []string{"hvm/x86_64"}},
	}, nil
}

// failPings makes every following Ping return err; nil heals the host.
func (m *mockSession) failPings(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *mockSession) pings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingCalls
}

// hangPings makes every following Ping block until its context ends.
func (m *mockSession) hangPings() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingHang = true
}

func (m *mockSession) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.pingCalls++
	hang, err := m.pingHang, m.pingErr
	m.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *mockSession) SetDomainState(ctx context.Context, id string, action PowerAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StateErr != nil {
		return m.StateErr
	}
	m.actions = append(m.actions, action)
	return nil
}

func (m *mockSession) ListDomains(ctx context.Context) ([]*mirror.VirtualMachine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*mirror.VirtualMachine
	for _, vm := range m.vms {
		out = append(out, vm.Clone())
	}
	return out, nil
}

func (m *mockSession) LookupDomain(ctx context.Context, id string) (*mirror.VirtualMachine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupCalls++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	vm, ok := m.vms[id]
	if !ok {
		return nil, fmt.Errorf("domain %s not found", id)
	}
	return vm.Clone(), nil
}

func (m *mockSession) DomainState(ctx context.Context, id string) (mirror.PowerState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vm, ok := m.vms[id]
	if !ok {
		return mirror.PowerNoState, false, fmt.Errorf("domain %s not found", id)
	}
	return vm.State, vm.Persistent, nil
}

func (m *mockSession) DomainTags(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tags[id]...), nil
}

func (m *mockSession) SetDomainTags(ctx context.Context, id string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setTagsCalls++
	m.lastSetTags = tags
	return nil
}

func (m *mockSession) ListPools(ctx context.Context) ([]*mirror.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*mirror.StoragePool
	for _, p := range m.pools {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *mockSession) LookupPool(ctx context.Context, id string) (*mirror.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupCalls++
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("pool %s not found", id)
	}
	return p.Clone(), nil
}

func (m *mockSession) Subscribe(ctx context.Context, kinds ...event.Kind) (<-chan event.Event, error) {
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.subscribed = kinds
	return m.events, nil
}

func (m *mockSession) Disconnected() <-chan struct{} { return m.disconnected }

func (m *mockSession) OpenScreenshot(ctx context.Context, domainID string, display int) (Stream, error) {
	if m.ScreenshotFunc != nil {
		return m.ScreenshotFunc(ctx, domainID, display)
	}
	return &mockStream{Reader: strings.NewReader("P6\n1 1\n255\n\x00\x00\x00")}, nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

func (m *mockSession) closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

type mockStream struct {
	io.Reader
	canceled bool
}

func (s *mockStream) Cancel() error {
	s.canceled = true
	return nil
}

// mockDialer hands out sessions in order. Once exhausted it fails.
type mockDialer struct {
	mu       sync.Mutex
	sessions []*mockSession
	err      error

	// For verification
	dialCalls int
}

func (d *mockDialer) Dial(ctx context.Context, host config.HostConfig) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCalls++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.sessions) == 0 {
		return nil, fmt.Errorf("connection refused")
	}
	s := d.sessions[0]
	d.sessions = d.sessions[1:]
	return s, nil
}

func (d *mockDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialCalls
}

// recorder collects changes.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}
