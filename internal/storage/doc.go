// Package storage connects devicegraphs to the storage pools of a libvirt
// host.
//
// Two pool types carry block devices:
//   - disk pools: one pool per disk, each volume is a partition
//   - logical pools: one pool per LVM volume group, each volume is a
//     logical volume
//
// Probe reads these pools into a devicegraph the proposal can run on.
// Plan compares the probed devicegraph with the one a proposal produced and
// lists the pool changes needed, and Apply carries them out.
//
// What libvirt cannot do:
//
// Disk pools place a new partition in the first free extent large enough
// for it, so a created partition may land elsewhere than planned. Pools
// know nothing about encryption or filesystems: planning a new encryption
// layer fails, and filesystems are left for the installer to create.
//
// Consumer-Side Interface:
//
// LibvirtClient lists the libvirt operations the Manager calls.
// *libvirt.Libvirt satisfies it, tests use a map-backed fake.
//
// Example usage:
//
//	client, err := libvirt.Connect(libvirt.DefaultSocket, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mgr := storage.NewManager(client.Libvirt())
//
//	probed, err := mgr.Probe(ctx)
//	if err != nil {
//	    return err
//	}
//
//	// run a proposal on probed, producing result
//
//	if _, err := mgr.Apply(ctx, probed, result); err != nil {
//	    return err
//	}
package storage
