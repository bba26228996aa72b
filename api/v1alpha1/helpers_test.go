package v1alpha1

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

func TestNewDocuments(t *testing.T) {
	d := NewDevicegraph("lab")
	if d.APIVersion != "storage.yast.io/v1alpha1" || d.Kind != DevicegraphKind {
		t.Errorf("NewDevicegraph() type = %s/%s", d.APIVersion, d.Kind)
	}
	if d.UID == "" || d.CreationTimestamp.IsZero() || d.Generation != 1 {
		t.Error("NewDevicegraph() metadata not initialized")
	}

	p := NewProposal("lab")
	if p.Kind != ProposalKind {
		t.Errorf("NewProposal() kind = %s", p.Kind)
	}
	if p.GetPhase() != ProposalPhasePending {
		t.Errorf("NewProposal() phase = %s, want Pending", p.GetPhase())
	}
	if p.UID == d.UID {
		t.Error("documents share a UID")
	}
}

func TestSetDefaultAPIVersion(t *testing.T) {
	tests := []struct {
		name string
		in   TypeMeta
		want TypeMeta
	}{
		{
			name: "empty gets defaults",
			in:   TypeMeta{},
			want: TypeMeta{APIVersion: APIVersion, Kind: ProposalKind},
		},
		{
			name: "existing values are kept",
			in:   TypeMeta{APIVersion: "storage.yast.io/v2", Kind: "Other"},
			want: TypeMeta{APIVersion: "storage.yast.io/v2", Kind: "Other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := tt.in
			SetDefaultAPIVersion(&tm, ProposalKind)
			if tm != tt.want {
				t.Errorf("SetDefaultAPIVersion() = %+v, want %+v", tm, tt.want)
			}
		})
	}
}

func TestDevicegraph_Normalize(t *testing.T) {
	d := &Devicegraph{
		ObjectMeta: ObjectMeta{Name: "  Lab "},
		Spec: DevicegraphSpec{
			Disks: []DiskSpec{{
				Name:           " /dev/sda ",
				PartitionTable: "GPT",
				Partitions:     []PartitionSpec{{Filesystem: "XFS"}},
			}},
			VolumeGroups: []VolumeGroupSpec{{Name: " system "}},
		},
	}
	d.Normalize()

	if d.Name != "lab" {
		t.Errorf("Name = %q, want lab", d.Name)
	}
	disk := d.Spec.Disks[0]
	if disk.Name != "/dev/sda" || disk.PartitionTable != "gpt" {
		t.Errorf("disk = %q/%q", disk.Name, disk.PartitionTable)
	}
	if disk.Partitions[0].Filesystem != "xfs" {
		t.Errorf("filesystem = %q, want xfs", disk.Partitions[0].Filesystem)
	}
	if d.Spec.VolumeGroups[0].Name != "system" {
		t.Errorf("volume group = %q, want system", d.Spec.VolumeGroups[0].Name)
	}
}

func TestDevicegraph_YAML(t *testing.T) {
	data := []byte(`apiVersion: storage.yast.io/v1alpha1
kind: Devicegraph
metadata:
  name: lab
spec:
  disks:
    - name: /dev/sda
      size: 100 GiB
      partitionTable: msdos
      partitions:
        - type: extended
          start: 1 MiB
          size: 50 GiB
        - type: logical
          id: lvm
          start: 2 MiB
          size: 20 GiB
          encrypted: true
  volumeGroups:
    - name: system
      physicalVolumes: [/dev/mapper/cr_sda5]
      logicalVolumes:
        - name: root
          size: 10 GiB
          filesystem: btrfs
          mountPoint: /
`)

	var d Devicegraph
	if err := yaml.Unmarshal(data, &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if d.Name != "lab" || d.Kind != DevicegraphKind {
		t.Errorf("metadata = %s/%s", d.Kind, d.Name)
	}
	parts := d.Spec.Disks[0].Partitions
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts))
	}
	if parts[0].Type != devicegraph.Extended || parts[0].Size != 50*disksize.GiB {
		t.Errorf("extended = %+v", parts[0])
	}
	if parts[1].Type != devicegraph.Logical || parts[1].ID != devicegraph.IDLVM || !parts[1].Encrypted {
		t.Errorf("logical = %+v", parts[1])
	}
	lv := d.Spec.VolumeGroups[0].LogicalVolumes[0]
	if lv.Size != 10*disksize.GiB || lv.MountPoint != "/" {
		t.Errorf("logical volume = %+v", lv)
	}
}

func TestProposalStatus_DeepCopy(t *testing.T) {
	in := &ProposalStatus{
		Phase:      ProposalPhaseProposed,
		Deleted:    []string{"/dev/sda1"},
		Created:    []string{"/dev/sda2"},
		Conditions: []Condition{{Type: ConditionSpaceAllocated, Status: ConditionTrue}},
	}

	out := in.DeepCopy()
	out.Deleted[0] = "/dev/sdb1"
	out.Created[0] = "/dev/sdb2"
	out.Conditions[0].Status = ConditionFalse

	if in.Deleted[0] != "/dev/sda1" || in.Created[0] != "/dev/sda2" {
		t.Error("modifying copy slices affected original")
	}
	if in.Conditions[0].Status != ConditionTrue {
		t.Error("modifying copy conditions affected original")
	}
}

func TestProposal_ObservedGeneration(t *testing.T) {
	p := NewProposal("lab")
	p.Generation = 4
	p.UpdateObservedGeneration()
	if p.Status.ObservedGeneration != 4 {
		t.Errorf("ObservedGeneration = %d, want 4", p.Status.ObservedGeneration)
	}
}
