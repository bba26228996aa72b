package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
)

// YAMLFormatter formats documents as YAML.
type YAMLFormatter struct{}

// FormatDevicegraph formats a Devicegraph as YAML.
func (f *YAMLFormatter) FormatDevicegraph(d *v1alpha1.Devicegraph) (string, error) {
	v1alpha1.SetDefaultAPIVersion(&d.TypeMeta, v1alpha1.DevicegraphKind)

	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal devicegraph to YAML: %w", err)
	}

	return string(data), nil
}

// FormatProposal formats a single Proposal as YAML.
func (f *YAMLFormatter) FormatProposal(p *v1alpha1.Proposal) (string, error) {
	v1alpha1.SetDefaultAPIVersion(&p.TypeMeta, v1alpha1.ProposalKind)

	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proposal to YAML: %w", err)
	}

	return string(data), nil
}

// FormatProposalList formats a list of Proposals as YAML.
// Outputs as a YAML stream (multiple documents separated by ---).
func (f *YAMLFormatter) FormatProposalList(ps []*v1alpha1.Proposal) (string, error) {
	if len(ps) == 0 {
		return "", nil
	}

	var buf bytes.Buffer

	for i, p := range ps {
		v1alpha1.SetDefaultAPIVersion(&p.TypeMeta, v1alpha1.ProposalKind)

		data, err := yaml.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to marshal proposal %s to YAML: %w", p.Name, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(data)
	}

	return buf.String(), nil
}
