package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/mirror"
)

// testFrame is a 2x1 binary PPM: one red and one blue pixel.
var testFrame = []byte("P6\n2 1\n255\n\xff\x00\x00\x00\x00\xff")

// mockSource is a mock implementation of Source and Inventory.
type mockSource struct {
	mu        sync.Mutex
	vms       map[string]*mirror.VirtualMachine
	connected map[string]bool

	// For controlling behavior
	OpenFunc func(ctx context.Context, vmID string, display int) (hypervisor.Stream, error)

	// For verification
	openCalls int
}

func newMockSource(vms ...*mirror.VirtualMachine) *mockSource {
	m := &mockSource{
		vms:       make(map[string]*mirror.VirtualMachine),
		connected: map[string]bool{"kvm1": true},
	}
	for _, vm := range vms {
		m.vms[vm.ID] = vm
	}
	return m
}

func (m *mockSource) FindVM(id string) *mirror.VirtualMachine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vms[id].Clone()
}

func (m *mockSource) AllVMs() []*mirror.VirtualMachine {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mirror.VirtualMachine
	for _, vm := range m.vms {
		out = append(out, vm.Clone())
	}
	return out
}

func (m *mockSource) IsConnected(hostID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[hostID]
}

func (m *mockSource) OpenScreenshot(ctx context.Context, vmID string, display int) (hypervisor.Stream, error) {
	m.mu.Lock()
	m.openCalls++
	fn := m.OpenFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, vmID, display)
	}
	return &frameStream{r: bytes.NewReader(testFrame)}, nil
}

func (m *mockSource) opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}

// frameStream serves a fixed frame.
type frameStream struct {
	r *bytes.Reader

	mu       sync.Mutex
	canceled int
}

func (s *frameStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *frameStream) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled++
	return nil
}

// blockingStream writes part of a frame and then blocks until canceled.
type blockingStream struct {
	sent     bool
	done     chan struct{}
	once     sync.Once
	canceled chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{done: make(chan struct{}), canceled: make(chan struct{})}
}

func (s *blockingStream) Read(p []byte) (int, error) {
	if !s.sent {
		s.sent = true
		return copy(p, testFrame[:4]), nil
	}
	<-s.done
	return 0, io.ErrClosedPipe
}

func (s *blockingStream) Cancel() error {
	s.once.Do(func() {
		close(s.done)
		close(s.canceled)
	})
	return nil
}

// failingStream fails mid-transfer.
type failingStream struct{}

func (failingStream) Read(p []byte) (int, error) { return 0, errors.New("stream aborted by host") }
func (failingStream) Cancel() error              { return nil }
