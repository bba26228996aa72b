package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	libvirtxml "libvirt.org/go/libvirtxml"

	lv "github.com/gilsonsouza/yast-storage-ng/internal/libvirt"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
)

// CreateLogicalPool defines, builds and starts a logical pool backed by a
// new volume group on the given physical volumes. Building the pool
// initializes the physical volumes and creates the group.
func (m *Manager) CreateLogicalPool(ctx context.Context, name string, pvs []string) error {
	log := logr.FromContextOrDiscard(ctx)

	if len(pvs) == 0 {
		return fmt.Errorf("volume group %s needs at least one physical volume", name)
	}

	poolXML, err := generateLogicalPoolXML(name, pvs)
	if err != nil {
		return fmt.Errorf("failed to generate pool XML: %w", err)
	}

	pool, err := m.client.StoragePoolDefineXML(poolXML, 0)
	if err != nil {
		return fmt.Errorf("failed to define pool: %w", err)
	}

	if err := m.client.StoragePoolBuild(pool, libvirt.StoragePoolBuildNew); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to build pool: %w", err)
	}

	if err := m.client.StoragePoolCreate(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to start pool: %w", err)
	}

	if err := m.client.StoragePoolSetAutostart(pool, 1); err != nil {
		// The group exists and the pool runs; only autostart is missing.
		return fmt.Errorf("pool created but failed to set autostart: %w", err)
	}

	log.Info("created logical pool", "pool", name, "pvs", pvs)
	return nil
}

// DeletePool deletes a storage pool.
// If force is true, all volumes in the pool are deleted first and the
// underlying storage (the volume group of a logical pool) is removed too.
func (m *Manager) DeletePool(ctx context.Context, name string, force bool) error {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	if force {
		volumes, _, err := m.client.StoragePoolListAllVolumes(pool, 1, 0)
		if err != nil {
			return fmt.Errorf("failed to list volumes: %w", err)
		}

		for _, vol := range volumes {
			if err := m.client.StorageVolDelete(vol, 0); err != nil {
				return fmt.Errorf("failed to delete volume %s: %w", vol.Name, err)
			}
		}
	}

	if err := m.stopPool(pool); err != nil {
		return err
	}

	if force {
		if err := m.client.StoragePoolDelete(pool, libvirt.StoragePoolDeleteNormal); err != nil {
			return fmt.Errorf("failed to delete pool storage: %w", err)
		}
	}

	if err := m.client.StoragePoolUndefine(pool); err != nil {
		return fmt.Errorf("failed to undefine pool: %w", err)
	}

	logr.FromContextOrDiscard(ctx).Info("deleted pool", "pool", name, "force", force)
	return nil
}

// LabelDisk writes a new, empty partition table on the disk of a disk pool.
// Every partition on the disk is lost.
func (m *Manager) LabelDisk(ctx context.Context, name, table string) error {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	def, err := m.poolDefinition(pool)
	if err != nil {
		return err
	}
	if def.Type != string(PoolTypeDisk) {
		return fmt.Errorf("pool %s is a %s pool, not a disk pool", name, def.Type)
	}
	if def.Source == nil {
		def.Source = &libvirtxml.StoragePoolSource{}
	}
	def.Source.Format = &libvirtxml.StoragePoolSourceFormat{Type: table}

	poolXML, err := lv.Document(def)
	if err != nil {
		return fmt.Errorf("failed to generate pool XML: %w", err)
	}

	if err := m.stopPool(pool); err != nil {
		return err
	}
	if pool, err = m.client.StoragePoolDefineXML(poolXML, 0); err != nil {
		return fmt.Errorf("failed to redefine pool: %w", err)
	}
	if err := m.client.StoragePoolBuild(pool, libvirt.StoragePoolBuildOverwrite); err != nil {
		return fmt.Errorf("failed to write partition table: %w", err)
	}
	if err := m.client.StoragePoolCreate(pool, 0); err != nil {
		return fmt.Errorf("failed to start pool: %w", err)
	}

	logr.FromContextOrDiscard(ctx).Info("wrote partition table", "pool", name, "table", table)
	return nil
}

func (m *Manager) stopPool(pool libvirt.StoragePool) error {
	poolState, _, _, _, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return fmt.Errorf("failed to get pool info: %w", err)
	}

	if libvirt.StoragePoolState(poolState) == libvirt.StoragePoolRunning {
		if err := m.client.StoragePoolDestroy(pool); err != nil {
			return fmt.Errorf("failed to stop pool: %w", err)
		}
	}
	return nil
}

// ListPools lists all storage pools, ordered by name. Pools whose
// definition cannot be read are skipped.
func (m *Manager) ListPools(ctx context.Context) ([]PoolInfo, error) {
	pools, _, err := m.client.ConnectListAllStoragePools(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	var poolInfos []PoolInfo
	for _, pool := range pools {
		info, err := m.GetPoolInfo(ctx, pool.Name)
		if err != nil {
			logr.FromContextOrDiscard(ctx).V(1).Info("skipping pool", "pool", pool.Name, "error", err.Error())
			continue
		}
		poolInfos = append(poolInfos, *info)
	}

	sort.Slice(poolInfos, func(i, j int) bool { return poolInfos[i].Name < poolInfos[j].Name })
	return poolInfos, nil
}

// GetPoolInfo gets detailed information about a storage pool.
func (m *Manager) GetPoolInfo(ctx context.Context, name string) (*PoolInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	poolState, capacity, allocation, available, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool info: %w", err)
	}

	def, err := m.poolDefinition(pool)
	if err != nil {
		return nil, err
	}

	info := &PoolInfo{
		Name:       pool.Name,
		Type:       PoolType(def.Type),
		UUID:       uuid.UUID(pool.UUID).String(),
		State:      stateName(libvirt.StoragePoolState(poolState)),
		Capacity:   toSize(capacity),
		Allocation: toSize(allocation),
		Available:  toSize(available),
	}
	if def.Target != nil {
		info.Path = def.Target.Path
	}
	if src := def.Source; src != nil {
		info.Source = src.Name
		if src.Format != nil {
			info.Format = src.Format.Type
		}
		for _, d := range src.Device {
			info.Devices = append(info.Devices, d.Path)
		}
	}

	return info, nil
}

// RefreshPool refreshes a storage pool, updating its state.
func (m *Manager) RefreshPool(ctx context.Context, name string) error {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	if err := m.client.StoragePoolRefresh(pool, 0); err != nil {
		return fmt.Errorf("failed to refresh pool: %w", err)
	}

	return nil
}

func (m *Manager) poolDefinition(pool libvirt.StoragePool) (*libvirtxml.StoragePool, error) {
	xmlDesc, err := m.client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool XML: %w", err)
	}

	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xmlDesc); err != nil {
		return nil, fmt.Errorf("failed to parse pool XML: %w", err)
	}
	return &def, nil
}

func stateName(s libvirt.StoragePoolState) string {
	switch s {
	case libvirt.StoragePoolInactive:
		return "inactive"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	default:
		return "unknown"
	}
}

// generateLogicalPoolXML generates XML for an LVM-backed storage pool.
func generateLogicalPoolXML(name string, pvs []string) (string, error) {
	pool := &libvirtxml.StoragePool{
		Type: string(PoolTypeLogical),
		Name: name,
		Source: &libvirtxml.StoragePoolSource{
			Name:   name,
			Format: &libvirtxml.StoragePoolSourceFormat{Type: formatLVM2},
		},
		Target: &libvirtxml.StoragePoolTarget{
			Path: naming.VolumeGroupPath(name),
		},
	}
	for _, pv := range pvs {
		pool.Source.Device = append(pool.Source.Device, libvirtxml.StoragePoolSourceDevice{Path: pv})
	}

	return lv.Document(pool)
}
