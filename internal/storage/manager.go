package storage

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virtfleet/internal/mirror"
)

// LibvirtClient is the interface for libvirt operations.
// This allows for dependency injection and testing.
type LibvirtClient interface {
	ConnectListAllStoragePools(NeedResults int32, Flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error)
	StoragePoolLookupByUUID(UUID libvirt.UUID) (libvirt.StoragePool, error)
	StoragePoolGetInfo(Pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error)
	StoragePoolGetXMLDesc(Pool libvirt.StoragePool, Flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolIsPersistent(Pool libvirt.StoragePool) (int32, error)
	StoragePoolListAllVolumes(Pool libvirt.StoragePool, NeedResults int32, Flags uint32) ([]libvirt.StorageVol, uint32, error)
	StorageVolGetInfo(Vol libvirt.StorageVol) (rType int8, rCapacity uint64, rAllocation uint64, err error)
	StorageVolGetPath(Vol libvirt.StorageVol) (string, error)
	StorageVolGetXMLDesc(Vol libvirt.StorageVol, Flags uint32) (string, error)
}

// Manager builds storage pool mirrors from one libvirt connection.
type Manager struct {
	client LibvirtClient
}

// NewManager creates a new storage manager.
func NewManager(client LibvirtClient) *Manager {
	return &Manager{
		client: client,
	}
}

// ListPools returns a mirror for every pool on the host, active or not.
func (m *Manager) ListPools(ctx context.Context) ([]*mirror.StoragePool, error) {
	pools, _, err := m.client.ConnectListAllStoragePools(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	out := make([]*mirror.StoragePool, 0, len(pools))
	for _, pool := range pools {
		p, err := m.poolMirror(pool)
		if err != nil {
			return nil, fmt.Errorf("failed to load pool %s: %w", pool.Name, err)
		}
		out = append(out, p)
	}

	return out, nil
}

// LookupPool returns the mirror of the pool with the given UUID.
func (m *Manager) LookupPool(ctx context.Context, id string) (*mirror.StoragePool, error) {
	uuid, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	pool, err := m.client.StoragePoolLookupByUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	return m.poolMirror(pool)
}

// Statuses returns the active and persistent flags of every pool, keyed by
// pool UUID.
func (m *Manager) Statuses(ctx context.Context) (map[string]PoolStatus, error) {
	pools, _, err := m.client.ConnectListAllStoragePools(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	out := make(map[string]PoolStatus, len(pools))
	for _, pool := range pools {
		state, _, _, _, err := m.client.StoragePoolGetInfo(pool)
		if err != nil {
			// Pool vanished between list and info; the next poll sees it gone
			continue
		}
		persistent, err := m.client.StoragePoolIsPersistent(pool)
		if err != nil {
			continue
		}

		id := FormatUUID(pool.UUID)
		out[id] = PoolStatus{
			ID:         id,
			Name:       pool.Name,
			Active:     poolState(state) == mirror.PoolRunning,
			Persistent: persistent == 1,
		}
	}

	return out, nil
}
