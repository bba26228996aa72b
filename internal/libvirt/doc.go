// Package libvirt owns the connection to the local libvirt daemon and the
// XML helpers shared by the storage pool code.
//
// Connect dials the daemon socket; the returned Client exposes the raw
// *libvirt.Libvirt for callers that need the storage pool API:
//
//	client, err := libvirt.Connect(libvirt.DefaultSocket, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mgr := storage.NewManager(client.Libvirt())
//
// Document renders libvirtxml pool and volume definitions in the form the
// Define and Create calls accept.
//
// No interfaces live here. internal/storage declares the LibvirtClient
// subset it calls and *libvirt.Libvirt satisfies it.
package libvirt
