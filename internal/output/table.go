package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jbweber/virtfleet/api/v1alpha1"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatHypervisors formats hypervisors as a table.
func (f *TableFormatter) FormatHypervisors(hvs []*v1alpha1.Hypervisor) (string, error) {
	if len(hvs) == 0 {
		return "No hypervisors found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "ID\tNAME\tPHASE\tHOSTNAME\tVERSION\tVMS\tPOOLS\tCONNECTED")
	}

	for _, hv := range hvs {
		connected := "-"
		if !hv.Status.LastConnected.IsZero() {
			connected = formatAge(time.Since(hv.Status.LastConnected.Time))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			hv.UID, hv.Name, orDash(string(hv.Status.Phase)), orDash(hv.Status.Hostname),
			orDash(hv.Status.LibVersion), hv.Status.VirtualMachines, hv.Status.StoragePools, connected)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatVMList formats virtual machines as a table.
func (f *TableFormatter) FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error) {
	if len(vms) == 0 {
		return "No VMs found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tHYPERVISOR\tSTATE\tVCPUs\tMEMORY\tTAGS\tUUID")
	}

	for _, vm := range vms {
		tags := "-"
		if len(vm.Spec.Tags) > 0 {
			tags = strings.Join(vm.Spec.Tags, ",")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			vm.Name, vm.Spec.HypervisorID, orDash(vm.Status.State), vm.Spec.VCPUs,
			formatBytes(vm.Spec.MemoryBytes), tags, vm.UID)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatPoolList formats storage pools as a table.
func (f *TableFormatter) FormatPoolList(pools []*v1alpha1.StoragePool) (string, error) {
	if len(pools) == 0 {
		return "No storage pools found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tHYPERVISOR\tTYPE\tSTATE\tCAPACITY\tAVAILABLE\tVOLUMES")
	}

	for _, p := range pools {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.Name, p.Spec.HypervisorID, orDash(p.Spec.Type), orDash(p.Status.State),
			formatBytes(p.Status.CapacityBytes), formatBytes(p.Status.AvailableBytes), len(p.Status.Volumes))
	}

	_ = w.Flush()
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatBytes renders a size in GiB with one decimal, or MiB below 1 GiB.
func formatBytes(b uint64) string {
	const mib = 1 << 20
	const gib = 1 << 30
	if b >= gib {
		return fmt.Sprintf("%.1f GiB", float64(b)/gib)
	}
	return fmt.Sprintf("%d MiB", b/mib)
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())

	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	// Weeks up to ~2 months
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
