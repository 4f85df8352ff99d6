package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
)

// Config is the complete virtfleet configuration.
type Config struct {
	Hosts []HostConfig `yaml:"hosts"`

	// ReconnectTimeout is the fixed delay between connect attempts.
	ReconnectTimeout time.Duration `yaml:"reconnect_timeout"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`

	// PoolPollInterval is how often storage pool state is diffed to
	// synthesize pool lifecycle events.
	PoolPollInterval time.Duration `yaml:"pool_poll_interval"`

	// KeepAliveInterval is how often a connected host is pinged. A negative
	// value disables keep-alive.
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	// KeepAliveCount is how many pings in a row may fail before the
	// connection is dropped and redialed.
	KeepAliveCount int `yaml:"keep_alive_count"`

	// TagsNamespace is the private domain metadata namespace holding VM tags.
	TagsNamespace string `yaml:"tags_namespace"`

	Capture   CaptureConfig   `yaml:"capture"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

// HostConfig identifies one hypervisor.
type HostConfig struct {
	ID              string     `yaml:"id"`
	Name            string     `yaml:"name,omitempty"`
	URI             string     `yaml:"uri"`
	DisplayEndpoint string     `yaml:"display_endpoint,omitempty"`
	SSH             *SSHConfig `yaml:"ssh,omitempty"` // Only used by qemu+ssh URIs
}

// SSHConfig configures the tunnel for qemu+ssh URIs.
type SSHConfig struct {
	User           string `yaml:"user,omitempty"`
	KeyFile        string `yaml:"key_file,omitempty"`
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`
	// InsecureIgnoreHostKey disables host key checking. Lab use only.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key,omitempty"`
}

// CaptureConfig configures the screenshot pipeline.
type CaptureConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	OutputDir     string        `yaml:"output_dir"`
	TempDir       string        `yaml:"temp_dir,omitempty"`
	ChunkSize     int           `yaml:"chunk_size"`
	SweepSchedule string        `yaml:"sweep_schedule,omitempty"` // cron spec, empty disables the sweeper
}

// BroadcastConfig configures change fan-out.
type BroadcastConfig struct {
	Stream    string     `yaml:"stream"`
	QueueSize int        `yaml:"queue_size"`
	NATS      NATSConfig `yaml:"nats"`
}

// NATSConfig configures the optional NATS publisher.
type NATSConfig struct {
	URL           string `yaml:"url,omitempty"` // empty disables NATS
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// HTTPConfig configures the web glue.
type HTTPConfig struct {
	Listen      string `yaml:"listen"`
	ServeStatic bool   `yaml:"serve_static"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development,omitempty"`
}

// Host ids end up in file paths and URLs, so they are restricted to a
// conservative character set.
var hostIDPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

var supportedSchemes = map[string]bool{
	"qemu":      true,
	"qemu+unix": true,
	"qemu+tcp":  true,
	"qemu+tls":  true,
	"qemu+ssh":  true,
}

// Validate checks the configuration for errors.
// Does not contact any host - only checks config structure.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("at least one hosts entry is required")
	}

	idsSeen := make(map[string]bool)
	for i := range c.Hosts {
		h := &c.Hosts[i]
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hosts[%d]: %w", i, err)
		}
		if idsSeen[h.ID] {
			return fmt.Errorf("hosts[%d]: duplicate id %q", i, h.ID)
		}
		idsSeen[h.ID] = true
	}

	if c.ReconnectTimeout <= 0 {
		return fmt.Errorf("reconnect_timeout must be > 0, got %s", c.ReconnectTimeout)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be > 0, got %s", c.DialTimeout)
	}
	if c.PoolPollInterval <= 0 {
		return fmt.Errorf("pool_poll_interval must be > 0, got %s", c.PoolPollInterval)
	}
	if c.KeepAliveInterval > 0 && c.KeepAliveCount <= 0 {
		return fmt.Errorf("keep_alive_count must be > 0 when keep-alive is enabled, got %d", c.KeepAliveCount)
	}

	if c.TagsNamespace == "" {
		return fmt.Errorf("tags_namespace is required")
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Broadcast.Validate(); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

// Validate checks host configuration.
func (h *HostConfig) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !hostIDPattern.MatchString(h.ID) {
		return fmt.Errorf("id must be lowercase alphanumeric with hyphens or underscores, got %q", h.ID)
	}

	if h.URI == "" {
		return fmt.Errorf("uri is required")
	}
	u, err := url.Parse(h.URI)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", h.URI, err)
	}
	if !supportedSchemes[u.Scheme] {
		return fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	if u.Scheme != "qemu" && u.Scheme != "qemu+unix" && u.Host == "" {
		return fmt.Errorf("uri %q requires a host", h.URI)
	}

	if u.Scheme == "qemu+ssh" {
		if u.User == nil && (h.SSH == nil || h.SSH.User == "") {
			return fmt.Errorf("qemu+ssh uri requires a user in the uri or ssh.user")
		}
		if h.SSH != nil && !h.SSH.InsecureIgnoreHostKey && h.SSH.KnownHostsFile == "" {
			return fmt.Errorf("ssh.known_hosts_file is required unless ssh.insecure_ignore_host_key is set")
		}
	} else if h.SSH != nil {
		return fmt.Errorf("ssh is only valid for qemu+ssh uris")
	}

	if h.DisplayEndpoint != "" {
		if _, err := url.Parse(h.DisplayEndpoint); err != nil {
			return fmt.Errorf("invalid display_endpoint %q: %w", h.DisplayEndpoint, err)
		}
	}

	return nil
}

// DisplayName returns Name, falling back to ID.
func (h *HostConfig) DisplayName() string {
	if h.Name == "" {
		return h.ID
	}
	return h.Name
}

// Validate checks capture configuration.
func (c *CaptureConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", c.Interval)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0, got %d", c.ChunkSize)
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep_schedule %q: %w", c.SweepSchedule, err)
		}
	}
	return nil
}

// Validate checks broadcast configuration.
func (b *BroadcastConfig) Validate() error {
	if b.Stream == "" {
		return fmt.Errorf("stream is required")
	}
	if b.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be > 0, got %d", b.QueueSize)
	}
	if b.NATS.URL != "" && strings.TrimSpace(b.NATS.SubjectPrefix) == "" {
		return fmt.Errorf("nats.subject_prefix is required when nats.url is set")
	}
	return nil
}

// Validate checks log configuration.
func (l *LogConfig) Validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", l.Level, err)
	}
	return nil
}

// Host returns the host with the given id.
func (c *Config) Host(id string) (*HostConfig, bool) {
	for i := range c.Hosts {
		if c.Hosts[i].ID == id {
			return &c.Hosts[i], true
		}
	}
	return nil, false
}
