package storage

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of LibvirtClient for testing.
type mockLibvirtClient struct {
	pools   map[string]*mockPool              // pool name -> pool
	volumes map[string]map[string]*mockVolume // pool name -> volume name -> volume
	order   []string                          // pool list order

	listErr      error
	listVolCalls int
}

type mockPool struct {
	name       string
	uuid       libvirt.UUID
	state      libvirt.StoragePoolState
	persistent bool
	capacity   uint64
	allocated  uint64
	available  uint64
	xmlDesc    string
	infoErr    error
}

type mockVolume struct {
	name      string
	key       string
	path      string
	volType   int8
	capacity  uint64
	allocated uint64
	xmlDesc   string
	infoErr   error
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		pools:   make(map[string]*mockPool),
		volumes: make(map[string]map[string]*mockVolume),
	}
}

// addPool registers a dir pool rooted at /var/lib/libvirt/images/{name}.
func (m *mockLibvirtClient) addPool(name, id string, state libvirt.StoragePoolState, persistent bool) *mockPool {
	uuid, err := ParseUUID(id)
	if err != nil {
		panic(err)
	}
	pool := &mockPool{
		name:       name,
		uuid:       uuid,
		state:      state,
		persistent: persistent,
		capacity:   1024 * 1024 * 1024 * 1024, // 1 TB
		allocated:  0,
		available:  1024 * 1024 * 1024 * 1024, // 1 TB
		xmlDesc: fmt.Sprintf(
			"<pool type='dir'><name>%s</name><uuid>%s</uuid><target><path>/var/lib/libvirt/images/%s</path></target></pool>",
			name, id, name),
	}
	m.pools[name] = pool
	m.volumes[name] = make(map[string]*mockVolume)
	m.order = append(m.order, name)
	return pool
}

func (m *mockLibvirtClient) removePool(name string) {
	delete(m.pools, name)
	delete(m.volumes, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *mockLibvirtClient) addVolume(pool, name, format string) *mockVolume {
	path := "/var/lib/libvirt/images/" + pool + "/" + name
	vol := &mockVolume{
		name:      name,
		key:       path,
		path:      path,
		volType:   0,
		capacity:  10 * 1024 * 1024 * 1024,
		allocated: 1024 * 1024 * 1024,
		xmlDesc: fmt.Sprintf(
			"<volume type='file'><name>%s</name><key>%s</key><target><path>%s</path><format type='%s'/></target></volume>",
			name, path, path, format),
	}
	m.volumes[pool][name] = vol
	return vol
}

func (m *mockLibvirtClient) lookup(pool libvirt.StoragePool) (*mockPool, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return nil, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return p, nil
}

func (m *mockLibvirtClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var pools []libvirt.StoragePool
	for _, name := range m.order {
		p := m.pools[name]
		pools = append(pools, libvirt.StoragePool{Name: p.name, UUID: p.uuid})
	}
	return pools, uint32(len(pools)), nil
}

func (m *mockLibvirtClient) StoragePoolLookupByUUID(uuid libvirt.UUID) (libvirt.StoragePool, error) {
	for _, p := range m.pools {
		if p.uuid == uuid {
			return libvirt.StoragePool{Name: p.name, UUID: p.uuid}, nil
		}
	}
	return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", FormatUUID(uuid))
}

func (m *mockLibvirtClient) StoragePoolGetInfo(pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error) {
	p, err := m.lookup(pool)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if p.infoErr != nil {
		return 0, 0, 0, 0, p.infoErr
	}
	return uint8(p.state), p.capacity, p.allocated, p.available, nil
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, err := m.lookup(pool)
	if err != nil {
		return "", err
	}
	return p.xmlDesc, nil
}

func (m *mockLibvirtClient) StoragePoolIsPersistent(pool libvirt.StoragePool) (int32, error) {
	p, err := m.lookup(pool)
	if err != nil {
		return 0, err
	}
	if p.persistent {
		return 1, nil
	}
	return 0, nil
}

func (m *mockLibvirtClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	m.listVolCalls++
	p, err := m.lookup(pool)
	if err != nil {
		return nil, 0, err
	}
	if p.state != libvirt.StoragePoolRunning {
		return nil, 0, fmt.Errorf("storage pool '%s' is not active", pool.Name)
	}

	var vols []libvirt.StorageVol
	for _, v := range sortedVolumes(m.volumes[pool.Name]) {
		vols = append(vols, libvirt.StorageVol{Pool: pool.Name, Name: v.name, Key: v.key})
	}
	return vols, uint32(len(vols)), nil
}

func (m *mockLibvirtClient) volume(vol libvirt.StorageVol) (*mockVolume, error) {
	v, ok := m.volumes[vol.Pool][vol.Name]
	if !ok {
		return nil, fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return v, nil
}

func (m *mockLibvirtClient) StorageVolGetInfo(vol libvirt.StorageVol) (rType int8, rCapacity uint64, rAllocation uint64, err error) {
	v, err := m.volume(vol)
	if err != nil {
		return 0, 0, 0, err
	}
	if v.infoErr != nil {
		return 0, 0, 0, v.infoErr
	}
	return v.volType, v.capacity, v.allocated, nil
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.path, nil
}

func (m *mockLibvirtClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.xmlDesc, nil
}

func sortedVolumes(vols map[string]*mockVolume) []*mockVolume {
	out := make([]*mockVolume, 0, len(vols))
	for _, v := range vols {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].name < out[j-1].name; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
