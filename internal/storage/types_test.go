package storage

import (
	"testing"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

func TestVolumeSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    VolumeSpec
		wantErr bool
	}{
		{
			name:    "valid partition spec",
			spec:    VolumeSpec{Name: "sda3", Capacity: 4 * disksize.GiB, Format: FormatLinux},
			wantErr: false,
		},
		{
			name:    "valid logical volume spec",
			spec:    VolumeSpec{Name: "root", Capacity: 20 * disksize.GiB},
			wantErr: false,
		},
		{
			name:    "missing name",
			spec:    VolumeSpec{Capacity: disksize.GiB},
			wantErr: true,
		},
		{
			name:    "zero capacity",
			spec:    VolumeSpec{Name: "root"},
			wantErr: true,
		},
		{
			name:    "unlimited capacity",
			spec:    VolumeSpec{Name: "root", Capacity: disksize.Unlimited},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVolumeFormat(t *testing.T) {
	tests := []struct {
		id   devicegraph.PartitionID
		want string
	}{
		{devicegraph.IDLinux, FormatLinux},
		{devicegraph.IDSwap, FormatSwap},
		{devicegraph.IDLVM, FormatLVM},
		{devicegraph.IDESP, FormatFAT32},
		{devicegraph.IDExtended, FormatExtended},
		{devicegraph.IDNTFS, FormatNone},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			if got := VolumeFormat(tt.id); got != tt.want {
				t.Errorf("VolumeFormat(%v) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPartitionID(t *testing.T) {
	tests := []struct {
		format string
		want   devicegraph.PartitionID
	}{
		{FormatLinux, devicegraph.IDLinux},
		{FormatSwap, devicegraph.IDSwap},
		{FormatLVM, devicegraph.IDLVM},
		{FormatFAT16, devicegraph.IDFAT},
		{FormatExtended, devicegraph.IDExtended},
		{FormatNone, devicegraph.IDLinux},
		{"", devicegraph.IDLinux},
	}

	for _, tt := range tests {
		if got := PartitionID(tt.format); got != tt.want {
			t.Errorf("PartitionID(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestTableFormat(t *testing.T) {
	for _, table := range []devicegraph.TableType{devicegraph.TableMSDOS, devicegraph.TableGPT} {
		got, ok := tableType(tableFormat(table))
		if !ok || got != table {
			t.Errorf("tableType(tableFormat(%v)) = %v, %v", table, got, ok)
		}
	}

	if _, ok := tableType("mac"); ok {
		t.Error("tableType(\"mac\") should not be supported")
	}
}
