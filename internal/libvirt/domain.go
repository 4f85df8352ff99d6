package libvirt

import (
	"fmt"
	"strings"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/virtfleet/internal/mirror"
)

// DomainDevices is the part of a mirror taken from the domain XML.
type DomainDevices struct {
	VCPUs       int
	MemoryBytes uint64
	Graphics    []mirror.Graphics
	Disks       []mirror.Disk
}

// ParseDomainXML extracts vCPU count, memory, graphics, and disks from a
// domain definition.
func ParseDomainXML(xmlDesc string) (DomainDevices, error) {
	var domain libvirtxml.Domain
	if err := domain.Unmarshal(xmlDesc); err != nil {
		return DomainDevices{}, fmt.Errorf("failed to parse domain XML: %w", err)
	}

	var out DomainDevices
	if domain.VCPU != nil {
		out.VCPUs = int(domain.VCPU.Value)
	}
	if domain.Memory != nil {
		bytes, err := memoryBytes(domain.Memory.Value, domain.Memory.Unit)
		if err != nil {
			return DomainDevices{}, err
		}
		out.MemoryBytes = bytes
	}

	if domain.Devices == nil {
		return out, nil
	}

	for _, g := range domain.Devices.Graphics {
		if mg, ok := graphics(g); ok {
			out.Graphics = append(out.Graphics, mg)
		}
	}
	for _, d := range domain.Devices.Disks {
		out.Disks = append(out.Disks, disk(d))
	}

	return out, nil
}

// memoryBytes converts a libvirt scaled integer to bytes. libvirt defaults
// to KiB when no unit is given.
func memoryBytes(value uint, unit string) (uint64, error) {
	v := uint64(value)
	switch strings.ToLower(unit) {
	case "b", "bytes":
		return v, nil
	case "", "k", "kib":
		return v << 10, nil
	case "kb":
		return v * 1000, nil
	case "m", "mib":
		return v << 20, nil
	case "mb":
		return v * 1000 * 1000, nil
	case "g", "gib":
		return v << 30, nil
	case "gb":
		return v * 1000 * 1000 * 1000, nil
	case "t", "tib":
		return v << 40, nil
	case "tb":
		return v * 1000 * 1000 * 1000 * 1000, nil
	default:
		return 0, fmt.Errorf("unknown memory unit %q", unit)
	}
}

func graphics(g libvirtxml.DomainGraphic) (mirror.Graphics, bool) {
	switch {
	case g.Spice != nil:
		return mirror.Graphics{
			Type:     "spice",
			Listen:   g.Spice.Listen,
			Port:     g.Spice.Port,
			TLSPort:  g.Spice.TLSPort,
			AutoPort: g.Spice.AutoPort == "yes",
		}, true
	case g.VNC != nil:
		return mirror.Graphics{
			Type:     "vnc",
			Listen:   g.VNC.Listen,
			Port:     g.VNC.Port,
			AutoPort: g.VNC.AutoPort == "yes",
		}, true
	default:
		return mirror.Graphics{}, false
	}
}

func disk(d libvirtxml.DomainDisk) mirror.Disk {
	out := mirror.Disk{Device: d.Device}
	if out.Device == "" {
		out.Device = "disk"
	}
	if d.Target != nil {
		out.Target = d.Target.Dev
		out.Bus = d.Target.Bus
	}
	if d.Driver != nil {
		out.Format = d.Driver.Type
	}

	if src := d.Source; src != nil {
		switch {
		case src.File != nil:
			out.Type = "file"
			out.SourceFile = src.File.File
		case src.Block != nil:
			out.Type = "block"
			out.SourceFile = src.Block.Dev
		case src.Volume != nil:
			out.Type = "volume"
			out.SourcePool = src.Volume.Pool
			out.SourceVolume = src.Volume.Volume
		case src.Network != nil:
			out.Type = "network"
		}
	}

	return out
}
