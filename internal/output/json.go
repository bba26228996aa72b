package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
)

// JSONFormatter formats documents as JSON.
type JSONFormatter struct{}

// FormatDevicegraph formats a Devicegraph as JSON.
func (f *JSONFormatter) FormatDevicegraph(d *v1alpha1.Devicegraph) (string, error) {
	v1alpha1.SetDefaultAPIVersion(&d.TypeMeta, v1alpha1.DevicegraphKind)

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal devicegraph to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatProposal formats a single Proposal as JSON.
func (f *JSONFormatter) FormatProposal(p *v1alpha1.Proposal) (string, error) {
	v1alpha1.SetDefaultAPIVersion(&p.TypeMeta, v1alpha1.ProposalKind)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal proposal to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatProposalList formats a list of Proposals as a JSON object with an
// items array, in the manner of Kubernetes lists:
//
//	{
//	  "apiVersion": "storage.yast.io/v1alpha1",
//	  "kind": "ProposalList",
//	  "items": [...]
//	}
func (f *JSONFormatter) FormatProposalList(ps []*v1alpha1.Proposal) (string, error) {
	for _, p := range ps {
		v1alpha1.SetDefaultAPIVersion(&p.TypeMeta, v1alpha1.ProposalKind)
	}
	if ps == nil {
		ps = []*v1alpha1.Proposal{}
	}

	wrapper := map[string]interface{}{
		"apiVersion": v1alpha1.APIVersion,
		"kind":       v1alpha1.ProposalKind + "List",
		"items":      ps,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(wrapper); err != nil {
		return "", fmt.Errorf("failed to marshal proposal list to JSON: %w", err)
	}

	return buf.String(), nil
}
