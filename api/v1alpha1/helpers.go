package v1alpha1

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group of the storage documents.
	GroupName = "storage.yast.io"

	// Version is the API version.
	Version = "v1alpha1"

	// APIVersion is the apiVersion every document carries.
	APIVersion = GroupName + "/" + Version

	// DevicegraphKind is the kind string for Devicegraph documents.
	DevicegraphKind = "Devicegraph"

	// ProposalKind is the kind string for Proposal documents.
	ProposalKind = "Proposal"
)

func newObjectMeta(name string) ObjectMeta {
	return ObjectMeta{
		Name:              name,
		UID:               uuid.New().String(),
		CreationTimestamp: Time{Time: time.Now()},
		Generation:        1,
	}
}

// NewDevicegraph creates an empty Devicegraph document.
func NewDevicegraph(name string) *Devicegraph {
	return &Devicegraph{
		TypeMeta:   TypeMeta{APIVersion: APIVersion, Kind: DevicegraphKind},
		ObjectMeta: newObjectMeta(name),
	}
}

// NewProposal creates an empty Proposal document in the Pending phase.
func NewProposal(name string) *Proposal {
	return &Proposal{
		TypeMeta:   TypeMeta{APIVersion: APIVersion, Kind: ProposalKind},
		ObjectMeta: newObjectMeta(name),
		Status:     ProposalStatus{Phase: ProposalPhasePending},
	}
}

// SetDefaultAPIVersion fills apiVersion and kind when a file omits them.
func SetDefaultAPIVersion(tm *TypeMeta, kind string) {
	if tm.APIVersion == "" {
		tm.APIVersion = APIVersion
	}
	if tm.Kind == "" {
		tm.Kind = kind
	}
}

// Normalize sanitizes user input to consistent formats.
// This is called automatically before validation.
func (d *Devicegraph) Normalize() {
	d.Name = strings.ToLower(strings.TrimSpace(d.Name))

	for i := range d.Spec.Disks {
		disk := &d.Spec.Disks[i]
		disk.Name = strings.TrimSpace(disk.Name)
		disk.PartitionTable = strings.ToLower(strings.TrimSpace(disk.PartitionTable))
		for j := range disk.Partitions {
			disk.Partitions[j].Filesystem = strings.ToLower(strings.TrimSpace(disk.Partitions[j].Filesystem))
		}
	}
	for i := range d.Spec.VolumeGroups {
		d.Spec.VolumeGroups[i].Name = strings.TrimSpace(d.Spec.VolumeGroups[i].Name)
	}
}

// SetPhase sets the proposal phase in status.
func (p *Proposal) SetPhase(phase ProposalPhase) {
	p.Status.Phase = phase
}

// GetPhase returns the current proposal phase.
func (p *Proposal) GetPhase() ProposalPhase {
	return p.Status.Phase
}

// UpdateObservedGeneration updates status.observedGeneration to match
// metadata.generation.
func (p *Proposal) UpdateObservedGeneration() {
	p.Status.ObservedGeneration = p.Generation
}
