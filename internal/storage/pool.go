package storage

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/virtfleet/internal/mirror"
)

// poolMirror reads state, counters, and definition of a pool. Volumes are
// enumerated only while the pool is running.
func (m *Manager) poolMirror(pool libvirt.StoragePool) (*mirror.StoragePool, error) {
	state, capacity, allocation, available, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool info: %w", err)
	}

	persistent, err := m.client.StoragePoolIsPersistent(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool persistence: %w", err)
	}

	// Get pool XML to extract type and path
	xmlDesc, err := m.client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool XML: %w", err)
	}

	var poolDef libvirtxml.StoragePool
	if err := poolDef.Unmarshal(xmlDesc); err != nil {
		return nil, fmt.Errorf("failed to parse pool XML: %w", err)
	}

	p := &mirror.StoragePool{
		ID:         FormatUUID(pool.UUID),
		Name:       pool.Name,
		Type:       poolDef.Type,
		State:      poolState(state),
		Persistent: persistent == 1,
		Capacity:   capacity,
		Allocation: allocation,
		Available:  available,
	}
	if poolDef.Target != nil {
		p.TargetPath = poolDef.Target.Path
	}

	if p.Running() {
		volumes, err := m.listVolumes(pool, p.ID)
		if err != nil {
			return nil, err
		}
		p.Volumes = volumes
	}

	return p, nil
}
