package storage

// PoolType represents the type of storage pool backend.
type PoolType string

const (
	PoolTypeDir     PoolType = "dir"     // Directory-based storage
	PoolTypeFS      PoolType = "fs"      // Pre-formatted block device
	PoolTypeLVM     PoolType = "logical" // LVM volume group
	PoolTypeZFS     PoolType = "zfs"     // ZFS pool
	PoolTypeNFS     PoolType = "netfs"   // NFS mount
	PoolTypeCeph    PoolType = "rbd"     // Ceph RBD
	PoolTypeISCSI   PoolType = "iscsi"   // iSCSI target
	PoolTypeGluster PoolType = "gluster" // GlusterFS
)

// VolumeType mirrors libvirt's virStorageVolType values.
type VolumeType string

const (
	VolumeTypeFile    VolumeType = "file"
	VolumeTypeBlock   VolumeType = "block"
	VolumeTypeDir     VolumeType = "dir"
	VolumeTypeNetwork VolumeType = "network"
	VolumeTypeNetDir  VolumeType = "netdir"
	VolumeTypePloop   VolumeType = "ploop"
)

// VolumeFormat represents the disk format.
type VolumeFormat string

const (
	VolumeFormatQCOW2 VolumeFormat = "qcow2" // QCOW2 format
	VolumeFormatRaw   VolumeFormat = "raw"   // Raw format
	VolumeFormatISO   VolumeFormat = "iso"   // ISO 9660 image
)

// PoolStatus is the slice of pool state the watcher diffs between polls.
type PoolStatus struct {
	ID         string
	Name       string
	Active     bool
	Persistent bool
}

// BytesToGB converts a byte counter to GiB for display.
func BytesToGB(b uint64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}
