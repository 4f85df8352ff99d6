// Package storage enumerates libvirt storage pools and their volumes into
// mirrors.
//
// The package is read-only: it never defines, builds, or deletes pools.
// It has two consumers:
//   - the hypervisor session, which loads pool mirrors on connect and on
//     every pool lifecycle event
//   - the pool Watcher, which synthesizes pool lifecycle events by diffing
//     pool state between polls, since the RPC client does not deliver
//     storage pool callbacks
//
// Volumes:
//
// Volumes can only be listed while a pool is running. A pool mirror built
// from an inactive pool carries no volumes. Volume ids are derived from the
// pool UUID and the volume index (see internal/naming).
//
// Consumer-Side Interface:
//
// LibvirtClient lists only the libvirt operations this package needs.
// *libvirt.Libvirt satisfies it implicitly.
//
// Example usage:
//
//	mgr := storage.NewManager(client.Libvirt())
//
//	pools, err := mgr.ListPools(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, p := range pools {
//	    fmt.Println(p.Name, p.State, len(p.Volumes))
//	}
package storage
