package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbweber/virtfleet/internal/loader"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virtfleet.yaml")

	if err := writeDefaultConfig(path, "qemu+tcp://10.0.0.5/system", false); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}

	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0].URI != "qemu+tcp://10.0.0.5/system" {
		t.Errorf("hosts = %+v", cfg.Hosts)
	}
	if cfg.KeepAliveCount != loader.DefaultKeepAliveCount {
		t.Errorf("keep_alive_count = %d", cfg.KeepAliveCount)
	}
	if !cfg.Capture.Enabled || cfg.Capture.SweepSchedule != "@every 1m" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
}

func TestWriteDefaultConfig_Exists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virtfleet.yaml")
	if err := os.WriteFile(path, []byte("hosts: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := writeDefaultConfig(path, "qemu:///system", false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("writeDefaultConfig() error = %v, want already exists", err)
	}

	if err := writeDefaultConfig(path, "qemu:///system", true); err != nil {
		t.Fatalf("writeDefaultConfig(force) error = %v", err)
	}
	if _, err := loader.LoadFromFile(path); err != nil {
		t.Errorf("LoadFromFile() error = %v", err)
	}
}

func TestWriteDefaultConfig_BadURI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virtfleet.yaml")
	if err := writeDefaultConfig(path, "http://example", false); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("file written for invalid configuration")
	}
}
