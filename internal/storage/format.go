package storage

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/jbweber/virtfleet/internal/mirror"
)

var volumeTypes = [...]VolumeType{
	VolumeTypeFile,
	VolumeTypeBlock,
	VolumeTypeDir,
	VolumeTypeNetwork,
	VolumeTypeNetDir,
	VolumeTypePloop,
}

// poolState maps libvirt's virStoragePoolState to the mirror state.
// Unknown values are reported as inaccessible.
func poolState(state uint8) mirror.PoolState {
	switch libvirt.StoragePoolState(state) {
	case libvirt.StoragePoolInactive:
		return mirror.PoolInactive
	case libvirt.StoragePoolBuilding:
		return mirror.PoolBuilding
	case libvirt.StoragePoolRunning:
		return mirror.PoolRunning
	case libvirt.StoragePoolDegraded:
		return mirror.PoolDegraded
	default:
		return mirror.PoolInaccessible
	}
}

// volumeType maps libvirt's virStorageVolType to its XML name.
func volumeType(t int8) VolumeType {
	if t < 0 || int(t) >= len(volumeTypes) {
		return VolumeType(fmt.Sprintf("unknown(%d)", t))
	}
	return volumeTypes[t]
}

// FormatUUID renders a libvirt UUID in canonical 8-4-4-4-12 form.
func FormatUUID(id libvirt.UUID) string {
	return uuid.UUID(id).String()
}

// ParseUUID parses a canonical UUID string into a libvirt UUID.
func ParseUUID(s string) (libvirt.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return libvirt.UUID{}, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return libvirt.UUID(u), nil
}
