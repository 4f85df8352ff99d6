package v1alpha1

// StoragePool is the read model of one libvirt storage pool on a hypervisor.
//
// +kubebuilder:resource:shortName=pool;pools
// +kubebuilder:printcolumn:name="State",type=string,JSONPath=`.status.state`
type StoragePool struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   StoragePoolSpec   `json:"spec" yaml:"spec"`
	Status StoragePoolStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// StoragePoolSpec describes the pool definition.
type StoragePoolSpec struct {
	HypervisorID string `json:"hypervisorID" yaml:"hypervisorID"`

	// Type is the libvirt pool type, e.g. dir, logical, netfs.
	Type       string `json:"type" yaml:"type"`
	TargetPath string `json:"targetPath,omitempty" yaml:"targetPath,omitempty"`
	Persistent bool   `json:"persistent" yaml:"persistent"`
}

// StoragePoolStatus is the observed pool state.
type StoragePoolStatus struct {
	// +kubebuilder:validation:Enum=inactive;building;running;degraded;inaccessible
	State string `json:"state" yaml:"state"`

	CapacityBytes   uint64 `json:"capacityBytes" yaml:"capacityBytes"`
	AllocationBytes uint64 `json:"allocationBytes" yaml:"allocationBytes"`
	AvailableBytes  uint64 `json:"availableBytes" yaml:"availableBytes"`

	// Volumes is empty unless the pool is running.
	// +optional
	Volumes []StorageVolume `json:"volumes,omitempty" yaml:"volumes,omitempty"`
}

// StorageVolume is one volume of a running pool.
type StorageVolume struct {
	// ID is {poolUID}--{index}; volume names are not URL safe.
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	Key             string `json:"key,omitempty" yaml:"key,omitempty"`
	Path            string `json:"path,omitempty" yaml:"path,omitempty"`
	Type            string `json:"type,omitempty" yaml:"type,omitempty"`
	Format          string `json:"format,omitempty" yaml:"format,omitempty"`
	CapacityBytes   uint64 `json:"capacityBytes" yaml:"capacityBytes"`
	AllocationBytes uint64 `json:"allocationBytes" yaml:"allocationBytes"`
}

// DeepCopy creates a deep copy of StoragePool.
func (in *StoragePool) DeepCopy() *StoragePool {
	if in == nil {
		return nil
	}
	out := new(StoragePool)
	*out = *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	if in.Status.Volumes != nil {
		out.Status.Volumes = make([]StorageVolume, len(in.Status.Volumes))
		copy(out.Status.Volumes, in.Status.Volumes)
	}
	return out
}
