package v1alpha1

// Hypervisor is one configured libvirt host and the state of its session.
//
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Hostname",type=string,JSONPath=`.status.hostname`
type Hypervisor struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   HypervisorSpec   `json:"spec" yaml:"spec"`
	Status HypervisorStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// HypervisorSpec is the static configuration of a host.
type HypervisorSpec struct {
	// URI is the libvirt connection URI, e.g. qemu+tcp://10.0.0.5/system.
	URI string `json:"uri" yaml:"uri"`

	// DisplayEndpoint is the base URL of the display proxy for this host.
	// +optional
	DisplayEndpoint string `json:"displayEndpoint,omitempty" yaml:"displayEndpoint,omitempty"`
}

// HypervisorStatus is what was observed on the current or last session.
type HypervisorStatus struct {
	// +kubebuilder:validation:Enum=Disconnected;Connecting;Connected
	Phase ConnectionPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// +listType=map
	// +listMapKey=type
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	Hostname          string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	LibVersion        string `json:"libVersion,omitempty" yaml:"libVersion,omitempty"`
	HypervisorVersion string `json:"hypervisorVersion,omitempty" yaml:"hypervisorVersion,omitempty"`
	FreeMemoryBytes   uint64 `json:"freeMemoryBytes,omitempty" yaml:"freeMemoryBytes,omitempty"`

	// +optional
	Node NodeInfo `json:"node,omitempty" yaml:"node,omitempty"`

	VirtualMachines int `json:"virtualMachines" yaml:"virtualMachines"`
	StoragePools    int `json:"storagePools" yaml:"storagePools"`

	// ConnectAttempts counts failed attempts since the last successful connect.
	ConnectAttempts int `json:"connectAttempts,omitempty" yaml:"connectAttempts,omitempty"`

	LastConnected Time `json:"lastConnected,omitempty" yaml:"lastConnected,omitempty"`
}

// NodeInfo is the hardware of a host as reported by libvirt.
type NodeInfo struct {
	CPUModel         string `json:"cpuModel,omitempty" yaml:"cpuModel,omitempty"`
	CPUs             int    `json:"cpus,omitempty" yaml:"cpus,omitempty"`
	MHz              int    `json:"mhz,omitempty" yaml:"mhz,omitempty"`
	NUMANodes        int    `json:"numaNodes,omitempty" yaml:"numaNodes,omitempty"`
	Sockets          int    `json:"sockets,omitempty" yaml:"sockets,omitempty"`
	Cores            int    `json:"cores,omitempty" yaml:"cores,omitempty"`
	Threads          int    `json:"threads,omitempty" yaml:"threads,omitempty"`
	TotalMemoryBytes uint64 `json:"totalMemoryBytes,omitempty" yaml:"totalMemoryBytes,omitempty"`
	MaxVCPUs         int    `json:"maxVcpus,omitempty" yaml:"maxVcpus,omitempty"`

	// Arch and GuestTypes come from the capabilities document. GuestTypes
	// holds one {osType}/{arch} entry per supported guest.
	Arch       string   `json:"arch,omitempty" yaml:"arch,omitempty"`
	GuestTypes []string `json:"guestTypes,omitempty" yaml:"guestTypes,omitempty"`
}

// ConnectionPhase is the lifecycle phase of a hypervisor session.
type ConnectionPhase string

const (
	// PhaseDisconnected means there is no session; a connect attempt is scheduled.
	PhaseDisconnected ConnectionPhase = "Disconnected"

	// PhaseConnecting means a connect attempt is in progress.
	PhaseConnecting ConnectionPhase = "Connecting"

	// PhaseConnected means the session is up, subscribed, and the cache is loaded.
	PhaseConnected ConnectionPhase = "Connected"
)

// Standard condition types for Hypervisor resources.
const (
	// ConditionConnected indicates an established libvirt session.
	ConditionConnected = "Connected"

	// ConditionSubscribed indicates all event subscriptions are registered.
	ConditionSubscribed = "Subscribed"

	// ConditionSynchronized indicates the entity cache holds a full reload.
	ConditionSynchronized = "Synchronized"
)

// DeepCopy creates a deep copy of Hypervisor.
func (in *Hypervisor) DeepCopy() *Hypervisor {
	if in == nil {
		return nil
	}
	out := new(Hypervisor)
	*out = *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of HypervisorStatus.
func (in *HypervisorStatus) DeepCopy() *HypervisorStatus {
	if in == nil {
		return nil
	}
	out := new(HypervisorStatus)
	*out = *in
	out.Conditions = DeepCopyConditions(in.Conditions)
	out.Node = *in.Node.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of NodeInfo.
func (in *NodeInfo) DeepCopy() *NodeInfo {
	if in == nil {
		return nil
	}
	out := new(NodeInfo)
	*out = *in
	if in.GuestTypes != nil {
		out.GuestTypes = make([]string, len(in.GuestTypes))
		copy(out.GuestTypes, in.GuestTypes)
	}
	return out
}
