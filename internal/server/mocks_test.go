package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/mirror"
)

// mockFleet is a mock implementation of Fleet over fixed data.
type mockFleet struct {
	hosts map[string]bool // id -> connected
	vms   []*mirror.VirtualMachine
	pools []*mirror.StoragePool

	// For controlling behavior
	SetTagsErr  error
	SetStateErr error

	// For verification
	lastTagsVM string
	lastTags   []string
	lastState  hypervisor.PowerAction
}

func (m *mockFleet) Hypervisors() []*v1alpha1.Hypervisor {
	var out []*v1alpha1.Hypervisor
	for _, id := range []string{"kvm1", "kvm2"} {
		if hv, err := m.Hypervisor(id); err == nil {
			out = append(out, hv)
		}
	}
	return out
}

func (m *mockFleet) Hypervisor(hostID string) (*v1alpha1.Hypervisor, error) {
	connected, ok := m.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", hypervisor.ErrUnknownHost, hostID)
	}
	hv := v1alpha1.NewHypervisor(hostID, "", "qemu+tcp://"+hostID+"/system", "")
	if connected {
		hv.Status.Phase = v1alpha1.PhaseConnected
	}
	return hv, nil
}

func (m *mockFleet) AllVMs() []*mirror.VirtualMachine { return m.vms }

func (m *mockFleet) ListVMs(hostID string) ([]*mirror.VirtualMachine, error) {
	if _, ok := m.hosts[hostID]; !ok {
		return nil, fmt.Errorf("%w: %s", hypervisor.ErrUnknownHost, hostID)
	}
	var out []*mirror.VirtualMachine
	for _, vm := range m.vms {
		if vm.HostID == hostID {
			out = append(out, vm)
		}
	}
	return out, nil
}

func (m *mockFleet) FindVM(id string) *mirror.VirtualMachine {
	for _, vm := range m.vms {
		if vm.ID == id {
			return vm
		}
	}
	return nil
}

func (m *mockFleet) AllPools() []*mirror.StoragePool { return m.pools }

func (m *mockFleet) FindPool(id string) (*mirror.StoragePool, error) {
	for _, p := range m.pools {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", hypervisor.ErrPoolNotFound, id)
}

func (m *mockFleet) FindVolume(id string) (*mirror.StorageVolume, *mirror.StoragePool, error) {
	for _, p := range m.pools {
		for i := range p.Volumes {
			if p.Volumes[i].ID == id {
				return &p.Volumes[i], p, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", hypervisor.ErrVolumeNotFound, id)
}

func (m *mockFleet) SetState(ctx context.Context, vmID string, action hypervisor.PowerAction) error {
	if m.SetStateErr != nil {
		return m.SetStateErr
	}
	if m.FindVM(vmID) == nil {
		return fmt.Errorf("%w: %s", hypervisor.ErrVMNotFound, vmID)
	}
	m.lastState = action
	return nil
}

func (m *mockFleet) SetTags(ctx context.Context, vmID string, tags []string) error {
	if m.SetTagsErr != nil {
		return m.SetTagsErr
	}
	if m.FindVM(vmID) == nil {
		return fmt.Errorf("%w: %s", hypervisor.ErrVMNotFound, vmID)
	}
	m.lastTagsVM = vmID
	m.lastTags = tags
	return nil
}

func (m *mockFleet) DisplayURL(vmID string) (string, error) {
	vm := m.FindVM(vmID)
	if vm == nil {
		return "", fmt.Errorf("%w: %s", hypervisor.ErrVMNotFound, vmID)
	}
	return hypervisor.DisplayURL("wss://proxy.example/spice", vm)
}

// mockCaptures is a mock implementation of Captures.
type mockCaptures struct {
	mu     sync.Mutex
	active map[string]bool
}

func key(vmID string, display int) string { return fmt.Sprintf("%s/%d", vmID, display) }

func (m *mockCaptures) Start(vmID string, display int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[key(vmID, display)] {
		return false
	}
	m.active[key(vmID, display)] = true
	return true
}

func (m *mockCaptures) Stop(vmID string, display int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active[key(vmID, display)] {
		return false
	}
	delete(m.active, key(vmID, display))
	return true
}

func (m *mockCaptures) Active(vmID string, display int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[key(vmID, display)]
}
