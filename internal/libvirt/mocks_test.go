package libvirt

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of LibvirtClient for testing.
// Unset func fields fall back to empty results.
type mockLibvirtClient struct {
	mu sync.Mutex

	domains      []libvirt.Domain
	states       map[string]int32 // domain name -> virDomainState
	persistent   map[string]bool
	xml          map[string]string
	metadata     map[string]string
	disconnected chan struct{}

	lifecycle chan libvirt.DomainEventLifecycleMsg
	meta      chan interface{}

	// For controlling behavior
	SubscribeEventsFunc  func(ctx context.Context, id libvirt.DomainEventID) (<-chan interface{}, error)
	DomainScreenshotFunc func(dom libvirt.Domain, w io.Writer, screen uint32) error
	PingErr              error
	PowerErr             error
	// savePaused makes a managed save restore into the paused state.
	savePaused bool

	saved map[string]bool // domain name -> has managed save image

	// For verification
	setMetadataCalls int
	lastScreen       uint32
	powerCalls       []string
	shutdownFlags    libvirt.DomainShutdownFlagValues
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		states:       make(map[string]int32),
		persistent:   make(map[string]bool),
		xml:          make(map[string]string),
		metadata:     make(map[string]string),
		saved:        make(map[string]bool),
		disconnected: make(chan struct{}),
		lifecycle:    make(chan libvirt.DomainEventLifecycleMsg, 8),
		meta:         make(chan interface{}, 8),
	}
}

func (m *mockLibvirtClient) addDomain(dom libvirt.Domain, state libvirt.DomainState, persistent bool, xml string) {
	m.domains = append(m.domains, dom)
	m.states[dom.Name] = int32(state)
	m.persistent[dom.Name] = persistent
	m.xml[dom.Name] = xml
}

func (m *mockLibvirtClient) ConnectGetHostname() (string, error) { return "kvm1.example", nil }
func (m *mockLibvirtClient) ConnectGetVersion() (uint64, error)  { return 8002000, nil }
func (m *mockLibvirtClient) NodeGetFreeMemory() (uint64, error)  { return 1 << 34, nil }

func (m *mockLibvirtClient) ConnectGetLibVersion() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PingErr != nil {
		return 0, m.PingErr
	}
	return 10000000, nil
}

func (m *mockLibvirtClient) NodeGetInfo() ([32]int8, uint64, int32, int32, int32, int32, int32, int32, error) {
	var model [32]int8
	for i, c := range "x86_64" {
		model[i] = int8(c)
	}
	return model, 32 << 20, 16, 2400, 2, 2, 4, 2, nil
}

func (m *mockLibvirtClient) ConnectGetMaxVcpus(typ libvirt.OptString) (int32, error) {
	return 240, nil
}

func (m *mockLibvirtClient) ConnectGetCapabilities() (string, error) {
	return testCapsXML, nil
}

// power records the call and moves the domain to state.
func (m *mockLibvirtClient) power(call string, dom libvirt.Domain, state libvirt.DomainState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerCalls = append(m.powerCalls, call)
	if m.PowerErr != nil {
		return m.PowerErr
	}
	m.states[dom.Name] = int32(state)
	return nil
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	state := libvirt.DomainRunning
	m.mu.Lock()
	if m.saved[dom.Name] && m.savePaused {
		state = libvirt.DomainPaused
	}
	delete(m.saved, dom.Name)
	m.mu.Unlock()
	return m.power("create", dom, state)
}

func (m *mockLibvirtClient) DomainShutdownFlags(dom libvirt.Domain, flags libvirt.DomainShutdownFlagValues) error {
	m.mu.Lock()
	m.shutdownFlags = flags
	m.mu.Unlock()
	return m.power("shutdown", dom, libvirt.DomainShutdown)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	return m.power("destroy", dom, libvirt.DomainShutoff)
}

func (m *mockLibvirtClient) DomainSuspend(dom libvirt.Domain) error {
	return m.power("suspend", dom, libvirt.DomainPaused)
}

func (m *mockLibvirtClient) DomainResume(dom libvirt.Domain) error {
	return m.power("resume", dom, libvirt.DomainRunning)
}

func (m *mockLibvirtClient) DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error {
	return m.power("reboot", dom, libvirt.DomainRunning)
}

func (m *mockLibvirtClient) DomainReset(dom libvirt.Domain, flags uint32) error {
	return m.power("reset", dom, libvirt.DomainRunning)
}

func (m *mockLibvirtClient) DomainManagedSave(dom libvirt.Domain, flags uint32) error {
	m.mu.Lock()
	m.saved[dom.Name] = true
	m.mu.Unlock()
	return m.power("managed_save", dom, libvirt.DomainShutoff)
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	return m.domains, uint32(len(m.domains)), nil
}

func (m *mockLibvirtClient) DomainLookupByUUID(uuid libvirt.UUID) (libvirt.Domain, error) {
	for _, d := range m.domains {
		if d.UUID == uuid {
			return d, nil
		}
	}
	return libvirt.Domain{}, fmt.Errorf("domain not found")
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[dom.Name], 0, nil
}

func (m *mockLibvirtClient) DomainIsPersistent(dom libvirt.Domain) (int32, error) {
	if m.persistent[dom.Name] {
		return 1, nil
	}
	return 0, nil
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	return m.xml[dom.Name], nil
}

func (m *mockLibvirtClient) DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.metadata[dom.Name]
	if !ok {
		return "", libvirt.Error{Code: uint32(libvirt.ErrNoDomainMetadata), Message: "metadata not found"}
	}
	return doc, nil
}

func (m *mockLibvirtClient) DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMetadataCalls++
	if len(metadata) == 0 || metadata[0] == "" {
		delete(m.metadata, dom.Name)
		return nil
	}
	m.metadata[dom.Name] = metadata[0]
	return nil
}

func (m *mockLibvirtClient) DomainScreenshot(dom libvirt.Domain, w io.Writer, screen uint32, flags uint32) (libvirt.OptString, error) {
	m.mu.Lock()
	m.lastScreen = screen
	m.mu.Unlock()
	if m.DomainScreenshotFunc != nil {
		return nil, m.DomainScreenshotFunc(dom, w, screen)
	}
	_, err := w.Write([]byte("frame"))
	return libvirt.OptString{"image/x-portable-pixmap"}, err
}

func (m *mockLibvirtClient) LifecycleEvents(ctx context.Context) (<-chan libvirt.DomainEventLifecycleMsg, error) {
	out := make(chan libvirt.DomainEventLifecycleMsg)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-m.lifecycle:
				if !ok {
					return
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *mockLibvirtClient) SubscribeEvents(ctx context.Context, id libvirt.DomainEventID, dom libvirt.OptDomain) (<-chan interface{}, error) {
	if m.SubscribeEventsFunc != nil {
		return m.SubscribeEventsFunc(ctx, id)
	}
	out := make(chan interface{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-m.meta:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *mockLibvirtClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Storage pools: the session tests run with no pools.

func (m *mockLibvirtClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	return nil, 0, nil
}

func (m *mockLibvirtClient) StoragePoolLookupByUUID(uuid libvirt.UUID) (libvirt.StoragePool, error) {
	return libvirt.StoragePool{}, fmt.Errorf("storage pool not found")
}

func (m *mockLibvirtClient) StoragePoolGetInfo(pool libvirt.StoragePool) (uint8, uint64, uint64, uint64, error) {
	return 0, 0, 0, 0, fmt.Errorf("storage pool not found")
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	return "", fmt.Errorf("storage pool not found")
}

func (m *mockLibvirtClient) StoragePoolIsPersistent(pool libvirt.StoragePool) (int32, error) {
	return 0, fmt.Errorf("storage pool not found")
}

func (m *mockLibvirtClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	return nil, 0, nil
}

func (m *mockLibvirtClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	return 0, 0, 0, fmt.Errorf("storage volume not found")
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	return "", fmt.Errorf("storage volume not found")
}

func (m *mockLibvirtClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	return "", fmt.Errorf("storage volume not found")
}
