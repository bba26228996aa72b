package storage

import (
	"fmt"
	"path"
	"sort"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
)

// mockLibvirtClient is a mock implementation of LibvirtClient for testing.
// Pool and volume definitions are kept as libvirt XML.
type mockLibvirtClient struct {
	pools map[string]*mockPool

	// calls records every mutating call as "Method name".
	calls []string

	// failOn makes the named call ("Method name") fail.
	failOn map[string]error
}

type mockPool struct {
	def       libvirtxml.StoragePool
	uuid      libvirt.UUID
	state     libvirt.StoragePoolState
	capacity  uint64
	autostart bool
	deleted   bool
	volumes   map[string]*mockVolume
}

type mockVolume struct {
	name    string
	path    string
	xmlDesc string
}

type mockPartition struct {
	name       string
	format     string
	start, end uint64
}

type mockLV struct {
	name     string
	capacity uint64
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		pools:  make(map[string]*mockPool),
		failOn: make(map[string]error),
	}
}

// addDiskPool registers a running disk pool for disk.
func (m *mockLibvirtClient) addDiskPool(name, disk, table string, capacity uint64, parts ...mockPartition) {
	def := libvirtxml.StoragePool{
		Type: string(PoolTypeDisk),
		Name: name,
		Source: &libvirtxml.StoragePoolSource{
			Device: []libvirtxml.StoragePoolSourceDevice{{Path: disk}},
		},
		Target: &libvirtxml.StoragePoolTarget{Path: "/dev"},
	}
	if table != "" {
		def.Source.Format = &libvirtxml.StoragePoolSourceFormat{Type: table}
	}
	p := m.putPool(def, capacity)

	for _, part := range parts {
		vol := &libvirtxml.StorageVolume{
			Name:     part.name,
			Capacity: &libvirtxml.StorageVolumeSize{Unit: "bytes", Value: part.end - part.start},
			Target: &libvirtxml.StorageVolumeTarget{
				Path:   "/dev/" + part.name,
				Format: &libvirtxml.StorageVolumeTargetFormat{Type: part.format},
			},
			Source: &libvirtxml.StorageVolumeSource{
				Device: []libvirtxml.StorageVolumeSourceDevice{{
					Path:   disk,
					Extent: []libvirtxml.StorageVolumeSourceExtent{{Start: part.start, End: part.end}},
				}},
			},
		}
		p.putVolume(vol)
	}
}

// addLogicalPool registers a running logical pool for the volume group vg.
func (m *mockLibvirtClient) addLogicalPool(name, vg string, pvs []string, capacity uint64, lvs ...mockLV) {
	def := libvirtxml.StoragePool{
		Type: string(PoolTypeLogical),
		Name: name,
		Source: &libvirtxml.StoragePoolSource{
			Name:   vg,
			Format: &libvirtxml.StoragePoolSourceFormat{Type: formatLVM2},
		},
		Target: &libvirtxml.StoragePoolTarget{Path: naming.VolumeGroupPath(vg)},
	}
	for _, pv := range pvs {
		def.Source.Device = append(def.Source.Device, libvirtxml.StoragePoolSourceDevice{Path: pv})
	}
	p := m.putPool(def, capacity)

	for _, lv := range lvs {
		p.putVolume(&libvirtxml.StorageVolume{
			Name:     lv.name,
			Capacity: &libvirtxml.StorageVolumeSize{Unit: "bytes", Value: lv.capacity},
			Target:   &libvirtxml.StorageVolumeTarget{Path: naming.LogicalVolumePath(vg, lv.name)},
		})
	}
}

func (m *mockLibvirtClient) putPool(def libvirtxml.StoragePool, capacity uint64) *mockPool {
	p := &mockPool{
		def:      def,
		state:    libvirt.StoragePoolRunning,
		capacity: capacity,
		volumes:  make(map[string]*mockVolume),
	}
	copy(p.uuid[:], def.Name)
	m.pools[def.Name] = p
	return p
}

func (p *mockPool) putVolume(vol *libvirtxml.StorageVolume) {
	xmlDesc, err := vol.Marshal()
	if err != nil {
		panic(err)
	}
	p.volumes[vol.Name] = &mockVolume{name: vol.Name, path: vol.Target.Path, xmlDesc: xmlDesc}
}

func (m *mockLibvirtClient) record(call, name string) error {
	key := call + " " + name
	m.calls = append(m.calls, key)
	return m.failOn[key]
}

func (m *mockLibvirtClient) pool(ref libvirt.StoragePool) (*mockPool, error) {
	p, ok := m.pools[ref.Name]
	if !ok {
		return nil, fmt.Errorf("storage pool not found: %s", ref.Name)
	}
	return p, nil
}

func (m *mockLibvirtClient) volume(ref libvirt.StorageVol) (*mockVolume, error) {
	p, ok := m.pools[ref.Pool]
	if !ok {
		return nil, fmt.Errorf("storage pool not found: %s", ref.Pool)
	}
	v, ok := p.volumes[ref.Name]
	if !ok {
		return nil, fmt.Errorf("storage volume not found: %s", ref.Name)
	}
	return v, nil
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	p, ok := m.pools[name]
	if !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: name, UUID: p.uuid}, nil
}

func (m *mockLibvirtClient) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("invalid pool XML: %w", err)
	}
	if def.Name == "" {
		return libvirt.StoragePool{}, fmt.Errorf("invalid pool XML: missing name")
	}
	if err := m.record("StoragePoolDefineXML", def.Name); err != nil {
		return libvirt.StoragePool{}, err
	}

	// Redefining keeps the pool and its volumes.
	if p, ok := m.pools[def.Name]; ok {
		p.def = def
		return libvirt.StoragePool{Name: def.Name, UUID: p.uuid}, nil
	}

	p := m.putPool(def, 0)
	p.state = libvirt.StoragePoolInactive
	return libvirt.StoragePool{Name: def.Name, UUID: p.uuid}, nil
}

func (m *mockLibvirtClient) StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error {
	p, err := m.pool(pool)
	if err != nil {
		return err
	}
	if err := m.record("StoragePoolCreate", pool.Name); err != nil {
		return err
	}
	p.state = libvirt.StoragePoolRunning
	return nil
}

func (m *mockLibvirtClient) StoragePoolBuild(pool libvirt.StoragePool, flags libvirt.StoragePoolBuildFlags) error {
	p, err := m.pool(pool)
	if err != nil {
		return err
	}
	if err := m.record("StoragePoolBuild", pool.Name); err != nil {
		return err
	}
	if flags&libvirt.StoragePoolBuildOverwrite != 0 {
		p.volumes = make(map[string]*mockVolume)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	p, err := m.pool(pool)
	if err != nil {
		return err
	}
	p.autostart = autostart != 0
	return m.record("StoragePoolSetAutostart", pool.Name)
}

func (m *mockLibvirtClient) StoragePoolDestroy(pool libvirt.StoragePool) error {
	p, err := m.pool(pool)
	if err != nil {
		return err
	}
	if err := m.record("StoragePoolDestroy", pool.Name); err != nil {
		return err
	}
	p.state = libvirt.StoragePoolInactive
	return nil
}

func (m *mockLibvirtClient) StoragePoolDelete(pool libvirt.StoragePool, flags libvirt.StoragePoolDeleteFlags) error {
	p, err := m.pool(pool)
	if err != nil {
		return err
	}
	if p.state == libvirt.StoragePoolRunning {
		return fmt.Errorf("storage pool %s is still active", pool.Name)
	}
	if err := m.record("StoragePoolDelete", pool.Name); err != nil {
		return err
	}
	p.deleted = true
	return nil
}

func (m *mockLibvirtClient) StoragePoolUndefine(pool libvirt.StoragePool) error {
	if _, err := m.pool(pool); err != nil {
		return err
	}
	if err := m.record("StoragePoolUndefine", pool.Name); err != nil {
		return err
	}
	delete(m.pools, pool.Name)
	return nil
}

func (m *mockLibvirtClient) StoragePoolGetInfo(pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error) {
	p, err := m.pool(pool)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return uint8(p.state), p.capacity, 0, p.capacity, nil
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, err := m.pool(pool)
	if err != nil {
		return "", err
	}
	return p.def.Marshal()
}

func (m *mockLibvirtClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	p, err := m.pool(pool)
	if err != nil {
		return nil, 0, err
	}

	var result []libvirt.StorageVol
	for name, v := range p.volumes {
		result = append(result, libvirt.StorageVol{Pool: pool.Name, Name: name, Key: v.path})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, uint32(len(result)), nil
}

func (m *mockLibvirtClient) StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error {
	p, err := m.pool(pool)
	if err != nil {
		return err
	}
	if p.state != libvirt.StoragePoolRunning {
		return fmt.Errorf("storage pool %s is not active", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	p, err := m.pool(pool)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	v, ok := p.volumes[name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name, Key: v.path}, nil
}

func (m *mockLibvirtClient) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	p, err := m.pool(pool)
	if err != nil {
		return libvirt.StorageVol{}, err
	}

	var vol libvirtxml.StorageVolume
	if err := vol.Unmarshal(xml); err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: %w", err)
	}
	if vol.Name == "" {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: missing name")
	}
	if _, ok := p.volumes[vol.Name]; ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume already exists: %s", vol.Name)
	}
	if err := m.record("StorageVolCreateXML", pool.Name+"/"+vol.Name); err != nil {
		return libvirt.StorageVol{}, err
	}

	if vol.Target == nil {
		vol.Target = &libvirtxml.StorageVolumeTarget{}
	}
	vol.Target.Path = path.Join(p.def.Target.Path, vol.Name)
	p.putVolume(&vol)

	return libvirt.StorageVol{Pool: pool.Name, Name: vol.Name, Key: vol.Target.Path}, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	if _, err := m.volume(vol); err != nil {
		return err
	}
	if err := m.record("StorageVolDelete", vol.Pool+"/"+vol.Name); err != nil {
		return err
	}
	delete(m.pools[vol.Pool].volumes, vol.Name)
	return nil
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.path, nil
}

func (m *mockLibvirtClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.xmlDesc, nil
}

func (m *mockLibvirtClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	var result []libvirt.StoragePool
	for name, p := range m.pools {
		result = append(result, libvirt.StoragePool{Name: name, UUID: p.uuid})
	}
	return result, uint32(len(result)), nil
}
