package v1alpha1

import (
	"github.com/jbweber/virtfleet/internal/mirror"
	"github.com/jbweber/virtfleet/internal/naming"
)

const (
	// GroupName is the API group for virtfleet resources.
	GroupName = "virtfleet.cofront.xyz"

	// Version is the API version.
	Version = "v1alpha1"

	HypervisorKind     = "Hypervisor"
	VirtualMachineKind = "VirtualMachine"
	StoragePoolKind    = "StoragePool"

	// LabelHypervisor is set on domains and pools to the owning hypervisor id.
	LabelHypervisor = GroupName + "/hypervisor"
)

func typeMeta(kind string) TypeMeta {
	return TypeMeta{APIVersion: GroupName + "/" + Version, Kind: kind}
}

// NewHypervisor creates a Hypervisor in the Disconnected phase.
func NewHypervisor(id, name, uri, displayEndpoint string) *Hypervisor {
	if name == "" {
		name = id
	}
	return &Hypervisor{
		TypeMeta:   typeMeta(HypervisorKind),
		ObjectMeta: ObjectMeta{Name: name, UID: id},
		Spec: HypervisorSpec{
			URI:             uri,
			DisplayEndpoint: displayEndpoint,
		},
		Status: HypervisorStatus{Phase: PhaseDisconnected},
	}
}

// VirtualMachineFromMirror converts a cached domain into its read model.
func VirtualMachineFromMirror(m *mirror.VirtualMachine) *VirtualMachine {
	vm := &VirtualMachine{
		TypeMeta: typeMeta(VirtualMachineKind),
		ObjectMeta: ObjectMeta{
			Name:   m.Name,
			UID:    m.ID,
			Labels: map[string]string{LabelHypervisor: m.HostID},
		},
		Spec: VirtualMachineSpec{
			HypervisorID: m.HostID,
			VCPUs:        m.VCPUs,
			MemoryBytes:  m.MemoryBytes,
			Persistent:   m.Persistent,
		},
		Status: VirtualMachineStatus{
			State:          m.State.String(),
			ScreenshotPath: naming.CaptureRelPath(m.HostID, m.ID, 0),
		},
	}

	if len(m.Tags) > 0 {
		vm.Spec.Tags = append([]string(nil), m.Tags...)
	}
	for _, g := range m.Graphics {
		vm.Spec.Graphics = append(vm.Spec.Graphics, GraphicsSpec(g))
	}
	for _, d := range m.Disks {
		vm.Spec.Disks = append(vm.Spec.Disks, DiskSpec(d))
	}

	return vm
}

// StoragePoolFromMirror converts a cached pool into its read model.
func StoragePoolFromMirror(m *mirror.StoragePool) *StoragePool {
	pool := &StoragePool{
		TypeMeta: typeMeta(StoragePoolKind),
		ObjectMeta: ObjectMeta{
			Name:   m.Name,
			UID:    m.ID,
			Labels: map[string]string{LabelHypervisor: m.HostID},
		},
		Spec: StoragePoolSpec{
			HypervisorID: m.HostID,
			Type:         m.Type,
			TargetPath:   m.TargetPath,
			Persistent:   m.Persistent,
		},
		Status: StoragePoolStatus{
			State:           m.State.String(),
			CapacityBytes:   m.Capacity,
			AllocationBytes: m.Allocation,
			AvailableBytes:  m.Available,
		},
	}

	for _, v := range m.Volumes {
		pool.Status.Volumes = append(pool.Status.Volumes, StorageVolumeFromMirror(v))
	}

	return pool
}

// StorageVolumeFromMirror converts a cached volume into its read model.
func StorageVolumeFromMirror(v mirror.StorageVolume) StorageVolume {
	return StorageVolume{
		ID:              v.ID,
		Name:            v.Name,
		Key:             v.Key,
		Path:            v.Path,
		Type:            v.Type,
		Format:          v.Format,
		CapacityBytes:   v.Capacity,
		AllocationBytes: v.Allocation,
	}
}
