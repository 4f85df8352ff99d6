package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/loader"
)

var (
	initHostURI string
	initForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the fleet configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration with every default spelled out",
	Long: `Write a starter configuration with one local host and all defaults filled
in. The path defaults to the --config flag. An existing file is only
replaced with --force.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := writeDefaultConfig(path, initHostURI, initForce); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&initHostURI, "uri", "qemu:///system", "Connection URI of the first host")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

// defaultConfig is a valid configuration for a single host at uri.
func defaultConfig(uri string) (*config.Config, error) {
	cfg := &config.Config{
		Hosts: []config.HostConfig{{ID: "local", URI: uri}},
		Capture: config.CaptureConfig{
			Enabled:       true,
			SweepSchedule: "@every 1m",
		},
	}
	loader.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func writeDefaultConfig(path, uri string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to replace it", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	cfg, err := defaultConfig(uri)
	if err != nil {
		return err
	}
	return loader.SaveToFile(cfg, path)
}
