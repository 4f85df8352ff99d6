// Package v1alpha1 contains the read-model types for virtfleet.cofront.xyz/v1alpha1.
//
// Hypervisors, virtual machines and storage pools are exposed with Kubernetes
// style TypeMeta/ObjectMeta envelopes so CLI output and the HTTP API share one
// shape. Spec carries what the host was configured with; Status carries what
// was last observed through the host's event stream.
package v1alpha1

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// TypeMeta describes an object's kind and API version.
type TypeMeta struct {
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta is the metadata shared by every read-model object.
type ObjectMeta struct {
	// Name is the human readable name reported by libvirt or configuration.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// UID is the libvirt UUID for domains and pools, and the configured id
	// for hypervisors.
	UID string `json:"uid,omitempty" yaml:"uid,omitempty"`

	// Labels carry ownership, e.g. the hypervisor id of a domain.
	// +optional
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Time is a wrapper around time.Time for RFC3339 JSON/YAML serialization.
type Time struct {
	time.Time `json:"-" yaml:"-"`
}

// Now returns the current time as a Time.
func Now() Time {
	return Time{Time: time.Now()}
}

// MarshalJSON returns an RFC3339 timestamp or null for zero values.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// UnmarshalJSON parses an RFC3339 timestamp or null.
func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (t Time) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" || node.Value == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, node.Value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Condition is one observation about an object, e.g. whether a hypervisor
// session is established.
type Condition struct {
	Type               string          `json:"type" yaml:"type"`
	Status             ConditionStatus `json:"status" yaml:"status"`
	LastTransitionTime Time            `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`
	// Reason is a CamelCase identifier for the last transition.
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ConditionStatus represents the status of a condition.
type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// DeepCopy creates a deep copy of ObjectMeta.
func (in *ObjectMeta) DeepCopy() *ObjectMeta {
	if in == nil {
		return nil
	}
	out := new(ObjectMeta)
	*out = *in
	if in.Labels != nil {
		out.Labels = make(map[string]string, len(in.Labels))
		for k, v := range in.Labels {
			out.Labels[k] = v
		}
	}
	return out
}

// DeepCopyConditions copies a condition list.
func DeepCopyConditions(in []Condition) []Condition {
	if in == nil {
		return nil
	}
	out := make([]Condition, len(in))
	copy(out, in)
	return out
}
