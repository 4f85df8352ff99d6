package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/libvirt"
	"github.com/jbweber/virtfleet/internal/loader"
	"github.com/jbweber/virtfleet/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	logLevel   string
	devLogs    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "virtfleet",
	Short: "Virtfleet - libvirt fleet mirror",
	Long: `Virtfleet keeps a live, event-driven mirror of the virtual machines and
storage pools on a fleet of libvirt hosts.

It reconnects to each host on its own, pushes every change to subscribers,
serves the mirror over HTTP and periodically captures VM screenshots.`,
	Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "virtfleet.yaml", "Path to the fleet configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev-logs", false, "Human-readable console logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(testConnCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loader.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if devLogs {
		cfg.Log.Development = true
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// selectHosts returns the configured hosts, or only the named one.
func selectHosts(cfg *config.Config, hostID string) ([]config.HostConfig, error) {
	if hostID == "" {
		return cfg.Hosts, nil
	}
	host, ok := cfg.Host(hostID)
	if !ok {
		return nil, fmt.Errorf("host %s is not configured", hostID)
	}
	return []config.HostConfig{*host}, nil
}

var testConnHost string

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connections",
	Long:  `Test connectivity to each configured libvirt daemon and display version information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		hosts, err := selectHosts(cfg, testConnHost)
		if err != nil {
			return err
		}

		dialer := libvirt.NewDialer(cfg, logger)
		failed := 0
		for _, host := range hosts {
			fmt.Printf("Testing %s (%s)...\n", host.DisplayName(), host.URI)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.DialTimeout+5*time.Second)
			err := testHost(ctx, dialer, host)
			cancel()
			if err != nil {
				fmt.Printf("✗ %v\n", err)
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d host(s) unreachable", failed, len(hosts))
		}
		fmt.Println("\nConnection test successful!")
		return nil
	},
}

func init() {
	testConnCmd.Flags().StringVar(&testConnHost, "host", "", "Only test the host with this id")
}

func testHost(ctx context.Context, dialer *libvirt.Dialer, host config.HostConfig) error {
	sess, err := dialer.Dial(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
		}
	}()

	fmt.Println("✓ Connected to libvirt daemon")

	info, err := sess.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read host info: %w", err)
	}

	fmt.Printf("✓ Libvirt version: %s\n", info.LibVersion)
	fmt.Printf("✓ Hypervisor version: %s\n", info.HypervisorVersion)
	fmt.Printf("✓ Hypervisor hostname: %s\n", info.Hostname)
	fmt.Printf("✓ Node: %s, %d CPUs, %d MiB, max %d vCPUs\n",
		info.Node.CPUModel, info.Node.CPUs, info.Node.TotalMemoryBytes>>20, info.Node.MaxVCPUs)

	if err := sess.Ping(ctx); err != nil {
		return fmt.Errorf("keep-alive ping failed: %w", err)
	}
	fmt.Println("✓ Keep-alive ping")
	return nil
}
