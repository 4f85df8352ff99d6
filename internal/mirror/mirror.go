// Package mirror holds the locally cached representations of remote
// hypervisor entities. Mirrors are plain values: the cache hands out
// clones so callers can never mutate shared state.
package mirror

import (
	"fmt"
	"slices"
)

// PowerState mirrors libvirt's virDomainState values.
type PowerState int

const (
	PowerNoState PowerState = iota
	PowerRunning
	PowerBlocked
	PowerPaused
	PowerShutdown
	PowerShutoff
	PowerCrashed
	PowerPMSuspended
)

var powerStateNames = [...]string{
	"no state", "running", "blocked", "paused",
	"shutdown", "shutoff", "crashed", "pmsuspended",
}

func (s PowerState) String() string {
	if s < 0 || int(s) >= len(powerStateNames) {
		return "unknown"
	}
	return powerStateNames[s]
}

// ParsePowerState is the inverse of PowerState.String.
func ParsePowerState(s string) (PowerState, error) {
	for i, name := range powerStateNames {
		if name == s {
			return PowerState(i), nil
		}
	}
	return PowerNoState, fmt.Errorf("unknown power state %q", s)
}

// PoolState mirrors libvirt's virStoragePoolState values.
type PoolState int

const (
	PoolInactive PoolState = iota
	PoolBuilding
	PoolRunning
	PoolDegraded
	PoolInaccessible
)

var poolStateNames = [...]string{
	"inactive", "building", "running", "degraded", "inaccessible",
}

func (s PoolState) String() string {
	if s < 0 || int(s) >= len(poolStateNames) {
		return "unknown"
	}
	return poolStateNames[s]
}

// Graphics describes one display device of a domain.
type Graphics struct {
	Type     string `json:"type"`
	Listen   string `json:"listen,omitempty"`
	Port     int    `json:"port,omitempty"`
	TLSPort  int    `json:"tls_port,omitempty"`
	AutoPort bool   `json:"autoport,omitempty"`
}

// Disk describes one disk device of a domain.
type Disk struct {
	Device       string `json:"device"`
	Type         string `json:"type"`
	Bus          string `json:"bus,omitempty"`
	Target       string `json:"target"`
	Format       string `json:"format,omitempty"`
	SourceFile   string `json:"source_file,omitempty"`
	SourcePool   string `json:"source_pool,omitempty"`
	SourceVolume string `json:"source_volume,omitempty"`
}

// VirtualMachine is the cached view of one libvirt domain.
type VirtualMachine struct {
	ID          string
	HostID      string
	Name        string
	State       PowerState
	Persistent  bool
	Tags        []string
	VCPUs       int
	MemoryBytes uint64
	Graphics    []Graphics
	Disks       []Disk
}

// Running reports whether the domain is executing.
func (vm *VirtualMachine) Running() bool {
	return vm.State == PowerRunning
}

// UsesPool reports whether any disk of the domain is backed by the named pool.
func (vm *VirtualMachine) UsesPool(pool string) bool {
	for _, d := range vm.Disks {
		if d.SourcePool == pool {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (vm *VirtualMachine) Clone() *VirtualMachine {
	if vm == nil {
		return nil
	}
	out := *vm
	out.Tags = slices.Clone(vm.Tags)
	out.Graphics = slices.Clone(vm.Graphics)
	out.Disks = slices.Clone(vm.Disks)
	return &out
}

// StorageVolume is the cached view of one volume of a running pool.
type StorageVolume struct {
	ID         string
	Name       string
	Key        string
	Path       string
	Type       string
	Format     string
	Capacity   uint64
	Allocation uint64
}

// StoragePool is the cached view of one libvirt storage pool.
// Volumes is only populated while the pool is running.
type StoragePool struct {
	ID         string
	HostID     string
	Name       string
	Type       string
	TargetPath string
	State      PoolState
	Persistent bool
	Capacity   uint64
	Allocation uint64
	Available  uint64
	Volumes    []StorageVolume
}

// Running reports whether the pool is active.
func (p *StoragePool) Running() bool {
	return p.State == PoolRunning
}

// Clone returns a deep copy.
func (p *StoragePool) Clone() *StoragePool {
	if p == nil {
		return nil
	}
	out := *p
	out.Volumes = slices.Clone(p.Volumes)
	return &out
}
