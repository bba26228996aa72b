// Package loader reads and writes the storage.yast.io/v1alpha1 documents:
// Devicegraph files describing existing devices and Proposal files
// describing planned ones.
package loader

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// LoadDevicegraph loads a Devicegraph document from a YAML file and builds
// the graph it describes.
func LoadDevicegraph(path string) (*devicegraph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadDevicegraphFromYAML(data)
}

// LoadDevicegraphFromYAML loads a Devicegraph document from YAML bytes and
// builds the graph it describes.
func LoadDevicegraphFromYAML(data []byte) (*devicegraph.Graph, error) {
	var doc v1alpha1.Devicegraph
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := checkTypeMeta(doc.TypeMeta, v1alpha1.DevicegraphKind); err != nil {
		return nil, err
	}

	doc.Normalize()

	g, err := BuildGraph(&doc)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return g, nil
}

// LoadProposal loads a Proposal document from a YAML file.
func LoadProposal(path string) (*v1alpha1.Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadProposalFromYAML(data)
}

// LoadProposalFromYAML loads a Proposal document from YAML bytes.
func LoadProposalFromYAML(data []byte) (*v1alpha1.Proposal, error) {
	var p v1alpha1.Proposal
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := checkTypeMeta(p.TypeMeta, v1alpha1.ProposalKind); err != nil {
		return nil, err
	}

	if p.Status.Phase == "" {
		p.Status.Phase = v1alpha1.ProposalPhasePending
	}
	if p.Generation == 0 {
		p.Generation = 1
	}

	if err := validateProposal(&p); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &p, nil
}

// SaveDevicegraph writes g as a Devicegraph document named name.
func SaveDevicegraph(g devicegraph.Devicegraph, name, path string) error {
	return save(FromGraph(g, name), path)
}

// SaveProposal writes a Proposal document, status included.
func SaveProposal(p *v1alpha1.Proposal, path string) error {
	v1alpha1.SetDefaultAPIVersion(&p.TypeMeta, v1alpha1.ProposalKind)
	return save(p, path)
}

func save(doc any, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

func checkTypeMeta(tm v1alpha1.TypeMeta, kind string) error {
	if tm.APIVersion == "" {
		return fmt.Errorf("missing required field: apiVersion")
	}
	if tm.Kind == "" {
		return fmt.Errorf("missing required field: kind")
	}
	if tm.APIVersion != v1alpha1.APIVersion {
		return fmt.Errorf("unsupported apiVersion: %s (expected: %s)", tm.APIVersion, v1alpha1.APIVersion)
	}
	if tm.Kind != kind {
		return fmt.Errorf("unsupported kind: %s (expected: %s)", tm.Kind, kind)
	}
	return nil
}

// validateProposal checks the planned devices of a proposal. Every problem
// is reported.
func validateProposal(p *v1alpha1.Proposal) error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("metadata.name is required"))
	}
	if len(p.Spec.Partitions) == 0 && p.Spec.VolumeGroup == nil {
		errs = append(errs, fmt.Errorf("spec must plan partitions or a volumeGroup"))
	}
	for i, part := range p.Spec.Partitions {
		if part == nil {
			errs = append(errs, fmt.Errorf("spec.partitions[%d] is empty", i))
			continue
		}
		if err := part.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("spec.partitions[%d]: %w", i, err))
		}
	}
	if vg := p.Spec.VolumeGroup; vg != nil {
		if err := vg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("spec.volumeGroup: %w", err))
		}
		if len(PhysicalVolumePartitions(p)) == 0 && len(p.Spec.PhysicalVolumes) == 0 && vg.Reuse == "" {
			errs = append(errs, fmt.Errorf("spec.volumeGroup has no physical volumes: plan an lvm partition or list spec.physicalVolumes"))
		}
	} else if len(p.Spec.PhysicalVolumes) > 0 {
		errs = append(errs, fmt.Errorf("spec.physicalVolumes requires spec.volumeGroup"))
	}
	return errors.Join(errs...)
}

// PhysicalVolumePartitions returns the planned partitions of p that carry
// the lvm id.
func PhysicalVolumePartitions(p *v1alpha1.Proposal) []*planned.Partition {
	var out []*planned.Partition
	for _, part := range p.Spec.Partitions {
		if part != nil && part.PartitionID() == devicegraph.IDLVM {
			out = append(out, part)
		}
	}
	return out
}
