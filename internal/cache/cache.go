// Package cache holds the per-hypervisor mirror of virtual machines and
// storage pools.
//
// One Cache belongs to one hypervisor supervisor. Only that supervisor's
// event loop writes to it; any goroutine may read. Readers always receive
// clones, so a mirror handed out can never change underneath them.
package cache

import (
	"sort"
	"sync"

	"github.com/jbweber/virtfleet/internal/mirror"
)

// Cache is keyed by domain UUID and pool UUID, so it can never hold two
// mirrors for the same entity.
type Cache struct {
	hostID string

	mu    sync.RWMutex
	vms   map[string]*mirror.VirtualMachine
	pools map[string]*mirror.StoragePool
}

// New creates an empty cache for a hypervisor.
func New(hostID string) *Cache {
	return &Cache{
		hostID: hostID,
		vms:    make(map[string]*mirror.VirtualMachine),
		pools:  make(map[string]*mirror.StoragePool),
	}
}

// HostID returns the owning hypervisor id.
func (c *Cache) HostID() string {
	return c.hostID
}

// Replace swaps the whole content for a full reload.
func (c *Cache) Replace(vms []*mirror.VirtualMachine, pools []*mirror.StoragePool) {
	nextVMs := make(map[string]*mirror.VirtualMachine, len(vms))
	for _, vm := range vms {
		vm = vm.Clone()
		vm.HostID = c.hostID
		nextVMs[vm.ID] = vm
	}

	nextPools := make(map[string]*mirror.StoragePool, len(pools))
	for _, p := range pools {
		p = p.Clone()
		p.HostID = c.hostID
		nextPools[p.ID] = p
	}

	c.mu.Lock()
	c.vms = nextVMs
	c.pools = nextPools
	c.mu.Unlock()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.vms = make(map[string]*mirror.VirtualMachine)
	c.pools = make(map[string]*mirror.StoragePool)
	c.mu.Unlock()
}

// Len returns the number of cached VMs and pools.
func (c *Cache) Len() (vms, pools int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vms), len(c.pools)
}

// VM returns a copy of the VM mirror with the given id.
func (c *Cache) VM(id string) (*mirror.VirtualMachine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vm, ok := c.vms[id]
	if !ok {
		return nil, false
	}
	return vm.Clone(), true
}

// VMs returns copies of all VM mirrors ordered by name, then id.
func (c *Cache) VMs() []*mirror.VirtualMachine {
	c.mu.RLock()
	out := make([]*mirror.VirtualMachine, 0, len(c.vms))
	for _, vm := range c.vms {
		out = append(out, vm.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InsertVM stores a new mirror. It returns false and leaves the cache
// untouched if a mirror with the same id exists.
func (c *Cache) InsertVM(vm *mirror.VirtualMachine) bool {
	vm = vm.Clone()
	vm.HostID = c.hostID

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.vms[vm.ID]; exists {
		return false
	}
	c.vms[vm.ID] = vm
	return true
}

// UpdateVM applies fn to the stored mirror and returns a copy of the result.
func (c *Cache) UpdateVM(id string, fn func(vm *mirror.VirtualMachine)) (*mirror.VirtualMachine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vm, ok := c.vms[id]
	if !ok {
		return nil, false
	}
	fn(vm)
	vm.ID = id
	vm.HostID = c.hostID
	return vm.Clone(), true
}

// RemoveVM deletes the mirror and returns it.
func (c *Cache) RemoveVM(id string) (*mirror.VirtualMachine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vm, ok := c.vms[id]
	if !ok {
		return nil, false
	}
	delete(c.vms, id)
	return vm, true
}

// Pool returns a copy of the pool mirror with the given id.
func (c *Cache) Pool(id string) (*mirror.StoragePool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pools[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Pools returns copies of all pool mirrors ordered by name, then id.
func (c *Cache) Pools() []*mirror.StoragePool {
	c.mu.RLock()
	out := make([]*mirror.StoragePool, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InsertPool stores a new pool mirror unless one with the same id exists.
func (c *Cache) InsertPool(p *mirror.StoragePool) bool {
	p = p.Clone()
	p.HostID = c.hostID

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pools[p.ID]; exists {
		return false
	}
	c.pools[p.ID] = p
	return true
}

// UpdatePool applies fn to the stored pool and returns a copy of the result.
func (c *Cache) UpdatePool(id string, fn func(p *mirror.StoragePool)) (*mirror.StoragePool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[id]
	if !ok {
		return nil, false
	}
	fn(p)
	p.ID = id
	p.HostID = c.hostID
	return p.Clone(), true
}

// RemovePool deletes the pool mirror and returns it.
func (c *Cache) RemovePool(id string) (*mirror.StoragePool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[id]
	if !ok {
		return nil, false
	}
	delete(c.pools, id)
	return p, true
}
