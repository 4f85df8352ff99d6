package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/virtfleet/api/v1alpha1"
)

// YAMLFormatter formats resources as a YAML stream, one document per
// resource separated by ---.
type YAMLFormatter struct{}

// FormatHypervisors formats hypervisors as YAML documents.
func (f *YAMLFormatter) FormatHypervisors(hvs []*v1alpha1.Hypervisor) (string, error) {
	docs := make([]namedDoc, 0, len(hvs))
	for _, hv := range hvs {
		docs = append(docs, namedDoc{hv.Name, hv})
	}
	return marshalYAMLStream(docs)
}

// FormatVMList formats virtual machines as YAML documents.
func (f *YAMLFormatter) FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error) {
	docs := make([]namedDoc, 0, len(vms))
	for _, vm := range vms {
		docs = append(docs, namedDoc{vm.Name, vm})
	}
	return marshalYAMLStream(docs)
}

// FormatPoolList formats storage pools as YAML documents.
func (f *YAMLFormatter) FormatPoolList(pools []*v1alpha1.StoragePool) (string, error) {
	docs := make([]namedDoc, 0, len(pools))
	for _, p := range pools {
		docs = append(docs, namedDoc{p.Name, p})
	}
	return marshalYAMLStream(docs)
}

type namedDoc struct {
	name string
	v    any
}

func marshalYAMLStream(docs []namedDoc) (string, error) {
	var buf bytes.Buffer

	for i, doc := range docs {
		data, err := yaml.Marshal(doc.v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s to YAML: %w", doc.name, err)
		}

		// Separator between documents, not before the first one
		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(data)
	}

	return buf.String(), nil
}
