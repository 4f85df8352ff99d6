package v1alpha1

// VirtualMachine is the read model of one libvirt domain on a hypervisor.
//
// Spec holds what the domain definition declares; Status holds the state last
// reported by the host.
//
// +kubebuilder:resource:shortName=vm;vms
// +kubebuilder:printcolumn:name="State",type=string,JSONPath=`.status.state`
// +kubebuilder:printcolumn:name="Hypervisor",type=string,JSONPath=`.spec.hypervisorID`
type VirtualMachine struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   VirtualMachineSpec   `json:"spec" yaml:"spec"`
	Status VirtualMachineStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// VirtualMachineSpec describes the domain definition.
type VirtualMachineSpec struct {
	HypervisorID string `json:"hypervisorID" yaml:"hypervisorID"`
	VCPUs        int    `json:"vcpus" yaml:"vcpus"`
	MemoryBytes  uint64 `json:"memoryBytes" yaml:"memoryBytes"`

	// Persistent is false for transient domains, which vanish when stopped.
	Persistent bool `json:"persistent" yaml:"persistent"`

	// Tags are stored in the domain's private metadata namespace.
	// +optional
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// +optional
	Graphics []GraphicsSpec `json:"graphics,omitempty" yaml:"graphics,omitempty"`

	// +optional
	Disks []DiskSpec `json:"disks,omitempty" yaml:"disks,omitempty"`
}

// GraphicsSpec describes one display device.
type GraphicsSpec struct {
	Type     string `json:"type" yaml:"type"`
	Listen   string `json:"listen,omitempty" yaml:"listen,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	TLSPort  int    `json:"tlsPort,omitempty" yaml:"tlsPort,omitempty"`
	AutoPort bool   `json:"autoport,omitempty" yaml:"autoport,omitempty"`
}

// DiskSpec describes one disk device.
type DiskSpec struct {
	Device string `json:"device" yaml:"device"`
	Type   string `json:"type" yaml:"type"`
	Bus    string `json:"bus,omitempty" yaml:"bus,omitempty"`
	Target string `json:"target" yaml:"target"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Exactly one of SourceFile or SourcePool/SourceVolume is set.
	SourceFile   string `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
	SourcePool   string `json:"sourcePool,omitempty" yaml:"sourcePool,omitempty"`
	SourceVolume string `json:"sourceVolume,omitempty" yaml:"sourceVolume,omitempty"`
}

// VirtualMachineStatus is the observed domain state.
type VirtualMachineStatus struct {
	// +kubebuilder:validation:Enum=no state;running;blocked;paused;shutdown;shutoff;crashed;pmsuspended
	State string `json:"state" yaml:"state"`

	// ScreenshotPath is the capture image path relative to the screenshot root.
	// +optional
	ScreenshotPath string `json:"screenshotPath,omitempty" yaml:"screenshotPath,omitempty"`
}

// DeepCopy creates a deep copy of VirtualMachine.
func (in *VirtualMachine) DeepCopy() *VirtualMachine {
	if in == nil {
		return nil
	}
	out := new(VirtualMachine)
	*out = *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = *in.Spec.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of VirtualMachineSpec.
func (in *VirtualMachineSpec) DeepCopy() *VirtualMachineSpec {
	if in == nil {
		return nil
	}
	out := new(VirtualMachineSpec)
	*out = *in

	if in.Tags != nil {
		out.Tags = make([]string, len(in.Tags))
		copy(out.Tags, in.Tags)
	}
	if in.Graphics != nil {
		out.Graphics = make([]GraphicsSpec, len(in.Graphics))
		copy(out.Graphics, in.Graphics)
	}
	if in.Disks != nil {
		out.Disks = make([]DiskSpec, len(in.Disks))
		copy(out.Disks, in.Disks)
	}

	return out
}
