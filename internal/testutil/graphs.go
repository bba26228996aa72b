// Package testutil provides device graph fixtures shared by the engine
// tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// MiB is the grain used by every fixture disk.
const MiB = disksize.MiB

// Disk adds a disk with the given table type to g. A zero table type adds
// an unpartitioned disk.
func Disk(t testing.TB, g *devicegraph.Graph, name string, size disksize.Size, table devicegraph.TableType) {
	t.Helper()
	d := devicegraph.Disk{Name: name, Size: size, MinGrain: MiB}
	if table != 0 {
		d.Table = &devicegraph.PartitionTable{Type: table}
	}
	require.NoError(t, g.AddDisk(d))
}

// Partition creates a partition spanning [start, end) and returns its name.
func Partition(t testing.TB, g *devicegraph.Graph, disk string, pt devicegraph.PartitionType, id devicegraph.PartitionID, start, end disksize.Size) string {
	t.Helper()
	p, err := g.CreatePartition(devicegraph.PartitionSpec{
		Disk:  disk,
		Type:  pt,
		ID:    id,
		Start: start,
		End:   end,
	})
	require.NoError(t, err)
	return p.Name
}

// VolumeGroup creates a volume group over the given devices, with one
// logical volume per entry of lvs (name → size).
func VolumeGroup(t testing.TB, g *devicegraph.Graph, name string, pvs []string, lvs ...LV) {
	t.Helper()
	_, err := g.CreateVolumeGroup(name, devicegraph.DefaultExtentSize)
	require.NoError(t, err)
	for _, pv := range pvs {
		require.NoError(t, g.AddPhysicalVolume(name, pv))
	}
	for _, lv := range lvs {
		_, err := g.CreateLogicalVolume(name, lv.Name, lv.Size)
		require.NoError(t, err)
	}
}

// LV names a logical volume fixture.
type LV struct {
	Name string
	Size disksize.Size
}

// LogicalChain builds, on an empty msdos disk, one extended partition
// covering [start, end) holding one logical partition per size. It returns
// the extended partition name followed by the logical ones.
func LogicalChain(t testing.TB, g *devicegraph.Graph, disk string, start, end disksize.Size, sizes ...disksize.Size) []string {
	t.Helper()
	names := []string{Partition(t, g, disk, devicegraph.Extended, devicegraph.IDExtended, start, end)}
	cursor := start
	for _, size := range sizes {
		cursor = cursor.Add(MiB)
		names = append(names, Partition(t, g, disk, devicegraph.Logical, devicegraph.IDLinux, cursor, cursor.Add(size)))
		cursor = cursor.Add(size)
	}
	return names
}
