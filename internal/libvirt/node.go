package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/virtfleet/api/v1alpha1"
)

// nodeInfo reads the host hardware, its vCPU limit, and its capabilities.
func (s *Session) nodeInfo() (v1alpha1.NodeInfo, error) {
	model, memKiB, cpus, mhz, nodes, sockets, cores, threads, err := s.l.NodeGetInfo()
	if err != nil {
		return v1alpha1.NodeInfo{}, fmt.Errorf("failed to get node info: %w", err)
	}
	maxVCPUs, err := s.l.ConnectGetMaxVcpus(nil)
	if err != nil {
		return v1alpha1.NodeInfo{}, fmt.Errorf("failed to get max vcpus: %w", err)
	}
	capsXML, err := s.l.ConnectGetCapabilities()
	if err != nil {
		return v1alpha1.NodeInfo{}, fmt.Errorf("failed to get capabilities: %w", err)
	}

	info := v1alpha1.NodeInfo{
		CPUModel:         cString(model[:]),
		CPUs:             int(cpus),
		MHz:              int(mhz),
		NUMANodes:        int(nodes),
		Sockets:          int(sockets),
		Cores:            int(cores),
		Threads:          int(threads),
		TotalMemoryBytes: memKiB * 1024,
		MaxVCPUs:         int(maxVCPUs),
	}

	var caps libvirtxml.Caps
	if err := caps.Unmarshal(capsXML); err != nil {
		return v1alpha1.NodeInfo{}, fmt.Errorf("failed to parse capabilities: %w", err)
	}
	if caps.Host.CPU != nil {
		info.Arch = caps.Host.CPU.Arch
	}
	for _, g := range caps.Guests {
		info.GuestTypes = append(info.GuestTypes, g.OSType+"/"+g.Arch.Name)
	}

	return info, nil
}

// cString converts a NUL padded C char array.
func cString(b []int8) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == 0 {
			break
		}
		out = append(out, byte(c))
	}
	return string(out)
}
