package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/libvirt"
	"github.com/jbweber/virtfleet/internal/output"
)

var (
	outputFormat string
	noHeaders    bool
	listHost     string
)

var listCmd = &cobra.Command{
	Use:   "list [hypervisors|vms|pools]",
	Short: "List hypervisors, VMs or storage pools",
	Long: `Connect once to each configured host and print what it reports.

Without an argument, VMs and storage pools are listed. Unreachable hosts are
reported on stderr and listed as Disconnected.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Full YAML resource definitions
  -o json   Full JSON resource definitions`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"hypervisors", "vms", "pools"},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate output format
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		hosts, err := selectHosts(cfg, listHost)
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		snap := takeSnapshot(cmd.Context(), libvirt.NewDialer(cfg, logger), hosts)

		kinds := []string{"vms", "pools"}
		if len(args) == 1 {
			kinds = args
		}

		for i, kind := range kinds {
			result, err := formatSnapshot(formatter, snap, kind)
			if err != nil {
				return err
			}
			if i > 0 && outputFormat == string(output.FormatTable) {
				fmt.Println()
			}
			fmt.Print(result)
		}
		return nil
	},
}

func formatSnapshot(formatter output.Formatter, snap snapshot, kind string) (string, error) {
	var (
		result string
		err    error
	)
	switch kind {
	case "hypervisors", "hv":
		result, err = formatter.FormatHypervisors(snap.hypervisors)
	case "vms", "vm", "virtual-machines":
		result, err = formatter.FormatVMList(snap.vms)
	case "pools", "pool", "storage-pools":
		result, err = formatter.FormatPoolList(snap.pools)
	default:
		return "", fmt.Errorf("unknown resource %q (valid: hypervisors, vms, pools)", kind)
	}
	if err != nil {
		return "", fmt.Errorf("failed to format output: %w", err)
	}
	return result, nil
}

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, yaml, json")
	listCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Don't print headers (table format only)")
	listCmd.Flags().StringVar(&listHost, "host", "", "Only query the host with this id")
}

type snapshot struct {
	hypervisors []*v1alpha1.Hypervisor
	vms         []*v1alpha1.VirtualMachine
	pools       []*v1alpha1.StoragePool
}

// takeSnapshot reads every host once, in configuration order.
func takeSnapshot(ctx context.Context, dialer hypervisor.Dialer, hosts []config.HostConfig) snapshot {
	var snap snapshot
	for _, host := range hosts {
		hv := v1alpha1.NewHypervisor(host.ID, host.DisplayName(), host.URI, host.DisplayEndpoint)
		snap.hypervisors = append(snap.hypervisors, hv)

		if err := readHost(ctx, dialer, host, hv, &snap); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", host.ID, err)
		}
	}
	return snap
}

func readHost(ctx context.Context, dialer hypervisor.Dialer, host config.HostConfig, hv *v1alpha1.Hypervisor, snap *snapshot) error {
	sess, err := dialer.Dial(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = sess.Close() }()

	info, err := sess.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read host info: %w", err)
	}
	vms, err := sess.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}
	pools, err := sess.ListPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list storage pools: %w", err)
	}

	hv.Status.Phase = v1alpha1.PhaseConnected
	hv.Status.Hostname = info.Hostname
	hv.Status.LibVersion = info.LibVersion
	hv.Status.HypervisorVersion = info.HypervisorVersion
	hv.Status.FreeMemoryBytes = info.FreeMemoryBytes
	hv.Status.Node = info.Node
	hv.Status.VirtualMachines = len(vms)
	hv.Status.StoragePools = len(pools)
	hv.Status.LastConnected = v1alpha1.Now()

	for _, vm := range vms {
		vm.HostID = host.ID
		snap.vms = append(snap.vms, v1alpha1.VirtualMachineFromMirror(vm))
	}
	for _, p := range pools {
		p.HostID = host.ID
		snap.pools = append(snap.pools, v1alpha1.StoragePoolFromMirror(p))
	}
	return nil
}
