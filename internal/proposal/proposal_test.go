package proposal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
	"github.com/gilsonsouza/yast-storage-ng/internal/proposal"
	"github.com/gilsonsouza/yast-storage-ng/internal/testutil"
)

const (
	MiB = disksize.MiB
	GiB = disksize.GiB
)

func mountPoints(g devicegraph.Devicegraph) map[string]string {
	out := map[string]string{}
	for _, p := range g.Partitions() {
		if p.MountPoint != "" {
			out[p.MountPoint] = p.Name
		}
	}
	return out
}

func TestProposer_EmptyDisk(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 100*GiB, devicegraph.TableGPT)
	s := config.Default()

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)
	require.True(t, o.Succeeded())

	assert.Empty(t, o.Deleted)
	assert.Equal(t, []string{"/dev/sda1", "/dev/sda2", "/dev/sda3"}, o.Created)
	assert.Equal(t, map[string]string{"/": "/dev/sda1", "swap": "/dev/sda2", "/home": "/dev/sda3"}, mountPoints(o.Graph))

	root, _ := o.Graph.Partition("/dev/sda1")
	assert.Equal(t, "btrfs", root.Filesystem)
	assert.False(t, root.Size().Less(12*GiB))
	assert.False(t, (40 * GiB).Less(root.Size()))

	swap, _ := o.Graph.Partition("/dev/sda2")
	assert.Equal(t, devicegraph.IDSwap, swap.ID)
	assert.False(t, (2 * GiB).Less(swap.Size()))

	assert.Empty(t, g.Partitions(), "base graph must not change")
}

func TestProposer_DeletesLinuxPartitions(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 30*GiB, devicegraph.TableMSDOS)
	testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDLinux, MiB, 30*GiB)
	s := config.Default()

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)

	assert.Equal(t, []string{"/dev/sda1"}, o.Deleted)
	assert.Equal(t, []string{"/dev/sda1", "/dev/sda2", "/dev/sda3"}, o.Created)

	old, ok := g.Partition("/dev/sda1")
	require.True(t, ok)
	assert.Empty(t, old.MountPoint, "base graph must not change")
}

func TestProposer_KeepsWindows(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 30*GiB, devicegraph.TableMSDOS)
	testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDNTFS, MiB, 30*GiB)
	s := config.Default()

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	assert.False(t, o.Succeeded())
	assert.Nil(t, o.Graph)
	require.ErrorIs(t, o.Err, outcome.ErrNoDiskSpace)

	s.DeleteWindows = true
	o = proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)
	assert.Equal(t, []string{"/dev/sda1"}, o.Deleted)
}

func TestProposer_DiskTooSmall(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 10*GiB, devicegraph.TableGPT)
	s := config.Default()

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.ErrorIs(t, o.Err, outcome.ErrNoDiskSpace)

	var noSpace *outcome.NoDiskSpaceError
	require.True(t, errors.As(o.Err, &noSpace))
	assert.Empty(t, noSpace.VG)
	assert.Equal(t, 12*GiB+514*MiB, noSpace.Missing)
}

func TestProposer_CandidateDisks(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 100*GiB, devicegraph.TableGPT)
	testutil.Disk(t, g, "/dev/sdb", 100*GiB, devicegraph.TableGPT)
	testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDLinux, MiB, 99*GiB)

	t.Run("free disk is preferred over deleting", func(t *testing.T) {
		s := config.Default()
		o := proposal.NewProposer().Propose(context.Background(), g, &s)
		require.NoError(t, o.Err)
		assert.Empty(t, o.Deleted)
		assert.Equal(t, []string{"/dev/sdb1", "/dev/sdb2", "/dev/sdb3"}, o.Created)
	})

	t.Run("restricted to one disk", func(t *testing.T) {
		s := config.Default()
		s.CandidateDisks = []string{"/dev/sda"}
		o := proposal.NewProposer().Propose(context.Background(), g, &s)
		require.NoError(t, o.Err)
		assert.Equal(t, []string{"/dev/sda1"}, o.Deleted)
		assert.Empty(t, o.Graph.Partitions(devicegraph.OnDisk("/dev/sdb")))
	})

	t.Run("unknown disk", func(t *testing.T) {
		s := config.Default()
		s.CandidateDisks = []string{"/dev/sdz"}
		o := proposal.NewProposer().Propose(context.Background(), g, &s)
		assert.ErrorIs(t, o.Err, devicegraph.ErrNotFound)
	})
}

func TestProposer_UnpartitionedDisk(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 100*GiB, 0)
	s := config.Default()

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)

	d, _ := o.Graph.Disk("/dev/sda")
	require.NotNil(t, d.Table)
	assert.Equal(t, proposal.DefaultTableType, d.Table.Type)

	base, _ := g.Disk("/dev/sda")
	assert.Nil(t, base.Table)
}

func TestProposer_Encrypted(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 100*GiB, devicegraph.TableGPT)
	s := config.Default()
	s.EncryptionPassword = "secret"

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)

	root, _ := o.Graph.Partition("/dev/sda1")
	assert.Equal(t, "/dev/mapper/cr_sda1", root.Encryption)
	assert.Equal(t, "/", root.MountPoint)
}

func TestProposer_LVM(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 100*GiB, devicegraph.TableGPT)
	s := config.Default()
	s.UseLVM = true

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)

	assert.Equal(t, []string{"/dev/sda1", "/dev/system/root", "/dev/system/swap", "/dev/system/home"}, o.Created)

	pv, _ := o.Graph.Partition("/dev/sda1")
	assert.Equal(t, devicegraph.IDLVM, pv.ID)

	vg, ok := o.Graph.VolumeGroup("system")
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/sda1"}, vg.PVs)

	lvs := map[string]devicegraph.LogicalVolume{}
	for _, lv := range o.Graph.LogicalVolumes("system") {
		lvs[lv.Name] = lv
	}
	require.Len(t, lvs, 3)
	assert.Equal(t, "/", lvs["root"].MountPoint)
	assert.Equal(t, "btrfs", lvs["root"].Filesystem)
	assert.False(t, lvs["root"].Size.Less(12*GiB))
	assert.False(t, (40 * GiB).Less(lvs["root"].Size))
	assert.Equal(t, "/home", lvs["home"].MountPoint)

	assert.Empty(t, g.VolumeGroups())
}

func TestProposer_LVMReplacesOldGroup(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 40*GiB, devicegraph.TableGPT)
	pv := testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDLVM, MiB, 39*GiB)
	testutil.VolumeGroup(t, g, "system", []string{pv}, testutil.LV{Name: "old", Size: 10 * GiB})
	s := config.Default()
	s.UseLVM = true

	o := proposal.NewProposer().Propose(context.Background(), g, &s)
	require.NoError(t, o.Err)

	assert.Equal(t, []string{"/dev/sda1"}, o.Deleted)
	assert.Empty(t, o.Graph.LogicalVolumes("system", devicegraph.LVNamed("old")))
	assert.Len(t, o.Graph.LogicalVolumes("system"), 3)
}

func TestProposer_Place(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 40*GiB, devicegraph.TableGPT)
	testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDNTFS, MiB, 20*GiB)

	boot := &planned.Partition{ID: devicegraph.IDESP, Min: 256 * MiB, Max: 512 * MiB}
	boot.Filesystem = "vfat"
	boot.MountPoint = "/boot/efi"
	pv := &planned.Partition{ID: devicegraph.IDLVM, Min: 8 * GiB, Max: disksize.Unlimited, Weight: 1}
	vg := &planned.VolumeGroup{
		Name: "data",
		LVs:  []*planned.LogicalVolume{{Name: "srv", Min: 4 * GiB, Max: disksize.Unlimited}},
	}

	devices := &proposal.Devices{Partitions: []*planned.Partition{boot, pv}, VolumeGroup: vg}
	o := proposal.NewProposer().Place(context.Background(), g, devices, nil)
	require.NoError(t, o.Err)

	assert.Empty(t, o.Deleted)
	assert.Equal(t, []string{"/dev/sda2", "/dev/sda3", "/dev/data/srv"}, o.Created)
	assert.Equal(t, "/dev/sda2", mountPoints(o.Graph)["/boot/efi"])

	got, ok := o.Graph.VolumeGroup("data")
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/sda3"}, got.PVs)

	_, ok = o.Graph.Partition("/dev/sda1")
	assert.True(t, ok, "Place never deletes partitions")
}

func TestProposer_Place_ExistingPhysicalVolumes(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 40*GiB, devicegraph.TableGPT)
	pv := testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDLVM, MiB, 40*GiB)

	vg := &planned.VolumeGroup{
		Name: "data",
		LVs:  []*planned.LogicalVolume{{Name: "srv", Min: 4 * GiB, Max: 8 * GiB}},
	}

	o := proposal.NewProposer().Place(context.Background(), g, &proposal.Devices{VolumeGroup: vg}, []string{pv})
	require.NoError(t, o.Err)
	assert.Equal(t, []string{"/dev/data/srv"}, o.Created)

	got, ok := o.Graph.VolumeGroup("data")
	require.True(t, ok)
	assert.Equal(t, []string{pv}, got.PVs)
}

func TestProposer_Place_NoSpace(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 10*GiB, devicegraph.TableGPT)
	testutil.Partition(t, g, "/dev/sda", devicegraph.Primary, devicegraph.IDLinux, MiB, 9*GiB)

	devices := &proposal.Devices{Partitions: []*planned.Partition{{Min: 4 * GiB, Max: 4 * GiB}}}
	o := proposal.NewProposer().Place(context.Background(), g, devices, nil)

	require.Error(t, o.Err)
	assert.True(t, errors.Is(o.Err, outcome.ErrNoDiskSpace))
	assert.False(t, o.Succeeded())
}
