package storage

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/virtfleet/internal/mirror"
	"github.com/jbweber/virtfleet/internal/naming"
)

// listVolumes enumerates the volumes of a running pool.
func (m *Manager) listVolumes(pool libvirt.StoragePool, poolID string) ([]mirror.StorageVolume, error) {
	volumes, _, err := m.client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	out := make([]mirror.StorageVolume, 0, len(volumes))
	for _, vol := range volumes {
		// Get volume info
		typ, capacity, allocation, err := m.client.StorageVolGetInfo(vol)
		if err != nil {
			// Skip volumes deleted while we were listing
			continue
		}

		path, err := m.client.StorageVolGetPath(vol)
		if err != nil {
			continue
		}

		out = append(out, mirror.StorageVolume{
			ID:         naming.VolumeID(poolID, len(out)),
			Name:       vol.Name,
			Key:        vol.Key,
			Path:       path,
			Type:       string(volumeType(typ)),
			Format:     m.volumeFormat(vol),
			Capacity:   capacity,
			Allocation: allocation,
		})
	}

	return out, nil
}

// volumeFormat reads the target format from the volume XML. Volumes of
// pool types without formats report an empty string.
func (m *Manager) volumeFormat(vol libvirt.StorageVol) string {
	xmlDesc, err := m.client.StorageVolGetXMLDesc(vol, 0)
	if err != nil {
		return ""
	}

	var volDef libvirtxml.StorageVolume
	if err := volDef.Unmarshal(xmlDesc); err != nil {
		return ""
	}
	if volDef.Target == nil || volDef.Target.Format == nil {
		return ""
	}
	return volDef.Target.Format.Type
}
