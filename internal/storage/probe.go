package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
)

// Probe builds a devicegraph from the disk and logical pools libvirt
// manages. Disk pools become disks with their partitions, logical pools
// become volume groups with their logical volumes. Other pool types are
// ignored.
//
// A physical volume named after an encryption layer of a known partition
// (/dev/mapper/cr_sda2) marks that partition as encrypted. Volume groups
// with physical volumes outside the probed disks are skipped.
func (m *Manager) Probe(ctx context.Context) (*devicegraph.Graph, error) {
	log := logr.FromContextOrDiscard(ctx)

	pools, err := m.ListPools(ctx)
	if err != nil {
		return nil, err
	}

	g := devicegraph.New()
	for _, pool := range pools {
		if pool.Type != PoolTypeDisk {
			continue
		}
		if err := m.probeDisk(ctx, g, pool); err != nil {
			return nil, fmt.Errorf("failed to probe pool %s: %w", pool.Name, err)
		}
	}

	for _, pool := range pools {
		if pool.Type != PoolTypeLogical {
			continue
		}
		if err := m.probeVolumeGroup(ctx, g, pool); err != nil {
			return nil, fmt.Errorf("failed to probe pool %s: %w", pool.Name, err)
		}
	}

	log.V(1).Info("probed devicegraph", "pools", len(pools),
		"disks", len(g.Disks()), "partitions", len(g.Partitions()), "volumeGroups", len(g.VolumeGroups()))
	return g, nil
}

func (m *Manager) probeDisk(ctx context.Context, g *devicegraph.Graph, pool PoolInfo) error {
	if len(pool.Devices) == 0 {
		return fmt.Errorf("disk pool has no source device")
	}

	disk := devicegraph.Disk{Name: pool.Devices[0], Size: pool.Capacity}
	switch pool.Format {
	case "", "unknown":
	default:
		t, ok := tableType(pool.Format)
		if !ok {
			return fmt.Errorf("unsupported partition table format %q", pool.Format)
		}
		disk.Table = &devicegraph.PartitionTable{Type: t}
	}
	if err := g.AddDisk(disk); err != nil {
		return err
	}

	vols, err := m.poolVolumes(ctx, pool)
	if err != nil {
		return err
	}
	if len(vols) > 0 && disk.Table == nil {
		return fmt.Errorf("disk %s has partitions but no partition table", disk.Name)
	}

	type numbered struct {
		VolumeInfo
		number int
	}
	parts := make([]numbered, 0, len(vols))
	for _, v := range vols {
		n, err := partitionNumber(v.Name)
		if err != nil {
			return err
		}
		if v.End <= v.Start {
			return fmt.Errorf("volume %s has no extent", v.Name)
		}
		parts = append(parts, numbered{VolumeInfo: v, number: n})
	}
	// Extended partitions come before the logical ones they hold.
	sort.Slice(parts, func(i, j int) bool { return parts[i].number < parts[j].number })

	for _, p := range parts {
		spec := devicegraph.PartitionSpec{
			Disk:   disk.Name,
			Type:   devicegraph.Primary,
			ID:     PartitionID(p.Format),
			Start:  p.Start,
			End:    p.End,
			Number: p.number,
		}
		switch {
		case p.Format == FormatExtended:
			spec.Type = devicegraph.Extended
		case disk.Table.Type == devicegraph.TableMSDOS && p.number > disk.Table.MaxPrimary():
			spec.Type = devicegraph.Logical
		}
		if _, err := g.CreatePartition(spec); err != nil {
			return fmt.Errorf("volume %s: %w", p.Name, err)
		}
	}
	return nil
}

func (m *Manager) probeVolumeGroup(ctx context.Context, g *devicegraph.Graph, pool PoolInfo) error {
	log := logr.FromContextOrDiscard(ctx)

	name := pool.Source
	if name == "" {
		name = pool.Name
	}

	for _, pv := range pool.Devices {
		if _, ok := g.PartitionByDevice(pv); ok {
			continue
		}
		if encryptedPartition(g, pv) {
			continue
		}
		log.Info("skipping volume group with unknown physical volume", "pool", pool.Name, "vg", name, "pv", pv)
		return nil
	}

	if _, err := g.CreateVolumeGroup(name, 0); err != nil {
		return err
	}
	for _, pv := range pool.Devices {
		if err := g.AddPhysicalVolume(name, pv); err != nil {
			return err
		}
	}

	vols, err := m.poolVolumes(ctx, pool)
	if err != nil {
		return err
	}
	for _, v := range vols {
		if _, err := g.CreateLogicalVolume(name, v.Name, v.Capacity); err != nil {
			return fmt.Errorf("volume %s: %w", v.Name, err)
		}
	}
	return nil
}

// encryptedPartition adds the encryption layer named device to the
// partition it belongs to. It reports whether device names such a layer.
func encryptedPartition(g *devicegraph.Graph, device string) bool {
	dir, base := path.Split(device)
	if path.Clean(dir) != naming.MapperDir {
		return false
	}
	kernel, ok := strings.CutPrefix(base, naming.EncryptionPrefix)
	if !ok {
		return false
	}
	p, ok := g.Partition("/dev/" + kernel)
	if !ok || p.Encryption != "" {
		return false
	}
	layer, err := g.Encrypt(p.Name)
	return err == nil && layer == device
}

func (m *Manager) poolVolumes(ctx context.Context, pool PoolInfo) ([]VolumeInfo, error) {
	if pool.State == "running" {
		if err := m.RefreshPool(ctx, pool.Name); err != nil {
			return nil, err
		}
	}
	return m.ListVolumes(ctx, pool.Name)
}

// partitionNumber returns the trailing number of a partition volume name,
// 3 for "sda3" and 2 for "nvme0n1p2".
func partitionNumber(name string) (int, error) {
	i := strings.LastIndexFunc(name, func(r rune) bool { return !unicode.IsDigit(r) })
	digits := name[i+1:]
	if digits == "" {
		return 0, fmt.Errorf("volume %s is not named after a partition number", name)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("volume %s has an invalid partition number", name)
	}
	return n, nil
}
