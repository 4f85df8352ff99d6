package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Hosts: []HostConfig{
			{ID: "kvm1", URI: "qemu:///system"},
			{ID: "kvm2", Name: "KVM 2", URI: "qemu+tcp://10.0.0.5/system", DisplayEndpoint: "wss://proxy.example/spice"},
		},
		ReconnectTimeout:  5 * time.Second,
		DialTimeout:       5 * time.Second,
		PoolPollInterval:  10 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		KeepAliveCount:    5,
		TagsNamespace:     "https://virtfleet.dev/xmlns/tags",
		Capture: CaptureConfig{
			Enabled:       true,
			Interval:      30 * time.Second,
			OutputDir:     "./public/screenshots",
			ChunkSize:     65536,
			SweepSchedule: "@every 1m",
		},
		Broadcast: BroadcastConfig{Stream: "event", QueueSize: 64},
		HTTP:      HTTPConfig{Listen: ":8080"},
		Log:       LogConfig{Level: "info"},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "no hosts",
			mutate:  func(c *Config) { c.Hosts = nil },
			wantErr: "at least one hosts entry is required",
		},
		{
			name:    "missing id",
			mutate:  func(c *Config) { c.Hosts[0].ID = "" },
			wantErr: "hosts[0]: id is required",
		},
		{
			name:    "id with path separator",
			mutate:  func(c *Config) { c.Hosts[1].ID = "../etc" },
			wantErr: "hosts[1]: id must be lowercase",
		},
		{
			name:    "duplicate id",
			mutate:  func(c *Config) { c.Hosts[1].ID = "kvm1" },
			wantErr: `hosts[1]: duplicate id "kvm1"`,
		},
		{
			name:    "missing uri",
			mutate:  func(c *Config) { c.Hosts[0].URI = "" },
			wantErr: "hosts[0]: uri is required",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.Hosts[0].URI = "xen:///system" },
			wantErr: `hosts[0]: unsupported uri scheme "xen"`,
		},
		{
			name:    "tcp without host",
			mutate:  func(c *Config) { c.Hosts[0].URI = "qemu+tcp:///system" },
			wantErr: "requires a host",
		},
		{
			name:    "ssh without user",
			mutate:  func(c *Config) { c.Hosts[0].URI = "qemu+ssh://10.0.0.5/system" },
			wantErr: "qemu+ssh uri requires a user",
		},
		{
			name: "ssh without known hosts",
			mutate: func(c *Config) {
				c.Hosts[0].URI = "qemu+ssh://root@10.0.0.5/system"
				c.Hosts[0].SSH = &SSHConfig{KeyFile: "/root/.ssh/id_ed25519"}
			},
			wantErr: "ssh.known_hosts_file is required",
		},
		{
			name:    "ssh block on tcp uri",
			mutate:  func(c *Config) { c.Hosts[1].SSH = &SSHConfig{User: "root"} },
			wantErr: "ssh is only valid for qemu+ssh uris",
		},
		{
			name:    "zero reconnect timeout",
			mutate:  func(c *Config) { c.ReconnectTimeout = 0 },
			wantErr: "reconnect_timeout must be > 0",
		},
		{
			name:    "zero pool poll interval",
			mutate:  func(c *Config) { c.PoolPollInterval = 0 },
			wantErr: "pool_poll_interval must be > 0",
		},
		{
			name:    "keep-alive without count",
			mutate:  func(c *Config) { c.KeepAliveCount = 0 },
			wantErr: "keep_alive_count must be > 0",
		},
		{
			name:    "missing tags namespace",
			mutate:  func(c *Config) { c.TagsNamespace = "" },
			wantErr: "tags_namespace is required",
		},
		{
			name:    "capture interval",
			mutate:  func(c *Config) { c.Capture.Interval = 0 },
			wantErr: "capture: interval must be > 0",
		},
		{
			name:    "capture schedule",
			mutate:  func(c *Config) { c.Capture.SweepSchedule = "every minute" },
			wantErr: "capture: invalid sweep_schedule",
		},
		{
			name:    "broadcast queue",
			mutate:  func(c *Config) { c.Broadcast.QueueSize = 0 },
			wantErr: "broadcast: queue_size must be > 0",
		},
		{
			name:    "nats without prefix",
			mutate:  func(c *Config) { c.Broadcast.NATS.URL = "nats://localhost:4222" },
			wantErr: "broadcast: nats.subject_prefix is required",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log: invalid level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_DisabledCaptureSkipsChecks(t *testing.T) {
	c := validConfig()
	c.Capture = CaptureConfig{Enabled: false}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_KeepAliveDisabled(t *testing.T) {
	c := validConfig()
	c.KeepAliveInterval = -1
	c.KeepAliveCount = 0
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_SSHHost(t *testing.T) {
	c := validConfig()
	c.Hosts[0].URI = "qemu+ssh://10.0.0.5/system"
	c.Hosts[0].SSH = &SSHConfig{User: "root", KnownHostsFile: "/root/.ssh/known_hosts"}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestHostLookup(t *testing.T) {
	c := validConfig()

	h, ok := c.Host("kvm2")
	if !ok {
		t.Fatal("Host(kvm2) not found")
	}
	if h.DisplayName() != "KVM 2" {
		t.Errorf("DisplayName() = %q", h.DisplayName())
	}

	h, _ = c.Host("kvm1")
	if h.DisplayName() != "kvm1" {
		t.Errorf("DisplayName() fallback = %q", h.DisplayName())
	}

	if _, ok := c.Host("missing"); ok {
		t.Error("Host(missing) should not be found")
	}
}
