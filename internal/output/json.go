package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/virtfleet/api/v1alpha1"
)

// JSONFormatter formats resources as JSON arrays.
type JSONFormatter struct{}

// FormatHypervisors formats hypervisors as a JSON array.
func (f *JSONFormatter) FormatHypervisors(hvs []*v1alpha1.Hypervisor) (string, error) {
	return marshalJSON("hypervisors", len(hvs), hvs)
}

// FormatVMList formats virtual machines as a JSON array.
func (f *JSONFormatter) FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error) {
	return marshalJSON("VMs", len(vms), vms)
}

// FormatPoolList formats storage pools as a JSON array.
func (f *JSONFormatter) FormatPoolList(pools []*v1alpha1.StoragePool) (string, error) {
	return marshalJSON("storage pools", len(pools), pools)
}

func marshalJSON(what string, n int, v any) (string, error) {
	if n == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}

	return string(data) + "\n", nil
}
