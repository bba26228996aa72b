package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	libvirtxml "libvirt.org/go/libvirtxml"

	lv "github.com/gilsonsouza/yast-storage-ng/internal/libvirt"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// CreateVolume creates a new volume in the specified pool and returns the
// path of its block device. In disk pools the volume is a partition placed
// by libvirt in the first free extent that fits it.
func (m *Manager) CreateVolume(ctx context.Context, poolName string, spec VolumeSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", fmt.Errorf("invalid volume spec: %w", err)
	}

	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return "", fmt.Errorf("pool not found: %w", err)
	}

	volumeXML, err := generateVolumeXML(spec)
	if err != nil {
		return "", fmt.Errorf("failed to generate volume XML: %w", err)
	}

	vol, err := m.client.StorageVolCreateXML(pool, volumeXML, 0)
	if err != nil {
		return "", fmt.Errorf("failed to create volume: %w", err)
	}

	path, err := m.client.StorageVolGetPath(vol)
	if err != nil {
		return "", fmt.Errorf("failed to get volume path: %w", err)
	}

	logr.FromContextOrDiscard(ctx).Info("created volume",
		"pool", poolName, "volume", spec.Name, "capacity", spec.Capacity.String(), "path", path)
	return path, nil
}

// DeleteVolume deletes a volume from the specified pool.
func (m *Manager) DeleteVolume(ctx context.Context, poolName, volumeName string) error {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return fmt.Errorf("volume not found: %w", err)
	}

	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	logr.FromContextOrDiscard(ctx).Info("deleted volume", "pool", poolName, "volume", volumeName)
	return nil
}

// ListVolumes lists all volumes in the specified pool, ordered by name.
func (m *Manager) ListVolumes(ctx context.Context, poolName string) ([]VolumeInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	volumes, _, err := m.client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	volumeInfos := make([]VolumeInfo, 0, len(volumes))
	for _, vol := range volumes {
		info, err := m.volumeInfo(poolName, vol)
		if err != nil {
			return nil, fmt.Errorf("volume %s: %w", vol.Name, err)
		}
		volumeInfos = append(volumeInfos, info)
	}

	sort.Slice(volumeInfos, func(i, j int) bool { return volumeInfos[i].Name < volumeInfos[j].Name })
	return volumeInfos, nil
}

func (m *Manager) volumeInfo(poolName string, vol libvirt.StorageVol) (VolumeInfo, error) {
	xmlDesc, err := m.client.StorageVolGetXMLDesc(vol, 0)
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("failed to get volume XML: %w", err)
	}

	var def libvirtxml.StorageVolume
	if err := def.Unmarshal(xmlDesc); err != nil {
		return VolumeInfo{}, fmt.Errorf("failed to parse volume XML: %w", err)
	}

	info := VolumeInfo{Name: vol.Name, Pool: poolName}
	if def.Capacity != nil {
		if info.Capacity, err = volumeSize(def.Capacity); err != nil {
			return VolumeInfo{}, err
		}
	}
	if t := def.Target; t != nil {
		info.Path = t.Path
		if t.Format != nil {
			info.Format = t.Format.Type
		}
	}
	if info.Path == "" {
		if info.Path, err = m.client.StorageVolGetPath(vol); err != nil {
			return VolumeInfo{}, fmt.Errorf("failed to get volume path: %w", err)
		}
	}
	if s := def.Source; s != nil {
		for _, d := range s.Device {
			if len(d.Extent) > 0 {
				info.Start = toSize(d.Extent[0].Start)
				info.End = toSize(d.Extent[0].End)
				break
			}
		}
	}
	return info, nil
}

// GetVolumePath gets the full device path for a volume.
func (m *Manager) GetVolumePath(ctx context.Context, poolName, volumeName string) (string, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return "", fmt.Errorf("pool not found: %w", err)
	}

	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return "", fmt.Errorf("volume not found: %w", err)
	}

	path, err := m.client.StorageVolGetPath(vol)
	if err != nil {
		return "", fmt.Errorf("failed to get volume path: %w", err)
	}

	return path, nil
}

// generateVolumeXML generates XML for a storage volume.
func generateVolumeXML(spec VolumeSpec) (string, error) {
	vol := &libvirtxml.StorageVolume{
		Name: spec.Name,
		Capacity: &libvirtxml.StorageVolumeSize{
			Value: spec.Capacity.Bytes(),
			Unit:  "bytes",
		},
	}
	if spec.Format != "" {
		vol.Target = &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{Type: spec.Format},
		}
	}

	return lv.Document(vol)
}

// volumeSize converts a libvirt scaled size into a Size.
func volumeSize(s *libvirtxml.StorageVolumeSize) (disksize.Size, error) {
	switch s.Unit {
	case "", "b", "B", "bytes":
		return toSize(s.Value), nil
	}
	size, err := disksize.Parse(fmt.Sprintf("%d%s", s.Value, s.Unit))
	if err != nil {
		return disksize.Zero, fmt.Errorf("invalid capacity: %w", err)
	}
	return size, nil
}

func toSize(bytes uint64) disksize.Size {
	return disksize.Size(bytes)
}
