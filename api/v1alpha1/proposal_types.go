package v1alpha1

import (
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// Proposal describes devices to place on a Devicegraph and, once placed,
// what the placement did.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
type Proposal struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec ProposalSpec `json:"spec" yaml:"spec"`

	// +optional
	Status ProposalStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// ProposalSpec lists the planned devices.
type ProposalSpec struct {
	// Partitions are placed in the free space of the devicegraph.
	// +optional
	Partitions []*planned.Partition `json:"partitions,omitempty" yaml:"partitions,omitempty"`

	// VolumeGroup is created, or extended when it reuses an existing one,
	// on top of PhysicalVolumes and of the LVM partitions placed from
	// Partitions.
	// +optional
	VolumeGroup *planned.VolumeGroup `json:"volumeGroup,omitempty" yaml:"volumeGroup,omitempty"`

	// PhysicalVolumes are existing partitions to add to VolumeGroup.
	// +optional
	PhysicalVolumes []string `json:"physicalVolumes,omitempty" yaml:"physicalVolumes,omitempty"`
}

// ProposalStatus is the observed result of a proposal.
type ProposalStatus struct {
	// +optional
	Phase ProposalPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Description names the settings variant that produced the result.
	// +optional
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Deleted lists the devices removed to make space.
	// +optional
	Deleted []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`

	// Created lists the devices created.
	// +optional
	Created []string `json:"created,omitempty" yaml:"created,omitempty"`

	// ObservedGeneration is the metadata.generation the status was computed
	// for.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`

	// +optional
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// ProposalPhase is the lifecycle phase of a Proposal.
type ProposalPhase string

const (
	// ProposalPhasePending means nothing was attempted yet.
	ProposalPhasePending ProposalPhase = "Pending"
	// ProposalPhaseProposing means allocation attempts are running.
	ProposalPhaseProposing ProposalPhase = "Proposing"
	// ProposalPhaseProposed means an attempt succeeded.
	ProposalPhaseProposed ProposalPhase = "Proposed"
	// ProposalPhaseApplied means the result was written to the storage
	// backend.
	ProposalPhaseApplied ProposalPhase = "Applied"
	// ProposalPhaseFailed means every attempt failed, or applying failed.
	ProposalPhaseFailed ProposalPhase = "Failed"
)

// Condition types of a Proposal.
const (
	// ConditionSpaceAllocated is True when the planned devices fit.
	ConditionSpaceAllocated = "SpaceAllocated"
	// ConditionApplied is True when the result exists on the backend.
	ConditionApplied = "Applied"
)

// DeepCopy creates a deep copy of ProposalStatus.
func (in *ProposalStatus) DeepCopy() *ProposalStatus {
	if in == nil {
		return nil
	}
	out := new(ProposalStatus)
	*out = *in
	if in.Deleted != nil {
		out.Deleted = append([]string(nil), in.Deleted...)
	}
	if in.Created != nil {
		out.Created = append([]string(nil), in.Created...)
	}
	if in.Conditions != nil {
		out.Conditions = append([]Condition(nil), in.Conditions...)
	}
	return out
}
