package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete tpx3drv driver configuration.
type Config struct {
	Serval      ServalConfig      `yaml:"serval"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Channels    []ChannelConfig   `yaml:"channels"`
	Logging     LogConfig         `yaml:"logging"`
	HTTPAPI     HTTPAPIConfig     `yaml:"http_api"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

// ServalConfig describes how to reach the Serval REST server.
type ServalConfig struct {
	URL      string   `yaml:"url"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout"`
}

// AcquisitionConfig holds the fixed sleeps and polling interval that
// spec.md treats as protocol contracts inherited from Serval, not tunables.
type AcquisitionConfig struct {
	PreStartSleep  Duration `yaml:"pre_start_sleep"`
	PreCleanSleep  Duration `yaml:"pre_clean_sleep"`
	PostStopSleep  Duration `yaml:"post_stop_sleep"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	PollInterval   Duration `yaml:"poll_interval"`
}

// ChannelKind enumerates Serval's streaming channel kinds.
type ChannelKind string

const (
	ChannelRaw    ChannelKind = "Raw"
	ChannelImg    ChannelKind = "Img"
	ChannelPrvImg ChannelKind = "PrvImg"
	ChannelPrvHst ChannelKind = "PrvHst"
	// ChannelPrvImg1 is accepted in configuration for naming compatibility
	// with the source driver, but no worker is ever spawned for it.
	ChannelPrvImg1 ChannelKind = "PrvImg1"
)

// PixelFormat is the wire pixel encoding of an image channel.
type PixelFormat string

const (
	FormatU16 PixelFormat = "uint16"
	FormatU32 PixelFormat = "uint32"
)

// ChannelConfig is one streaming (or file) destination.
type ChannelConfig struct {
	Name            string      `yaml:"name"`
	Kind            ChannelKind `yaml:"kind"`
	Enabled         bool        `yaml:"enabled"`
	Histogram       bool        `yaml:"histogram"` // selects the BinArray processor instead of PixelArray
	Destination     string      `yaml:"destination"`
	FilePattern     string      `yaml:"file_pattern"`
	Format          int         `yaml:"format"`
	Mode            int         `yaml:"mode"`
	IntegrationMode int         `yaml:"integration_mode"`
	IntegrationSize int         `yaml:"integration_size"`
	SplitStrategy   int         `yaml:"split_strategy"`
	QueueSize       int         `yaml:"queue_size"`
	FramesToSum     int         `yaml:"frames_to_sum"`
	SumUpdateEvery  int         `yaml:"sum_update_interval_frames"`
	AccumulateData  bool        `yaml:"accumulate_data"`
}

// HTTPAPIConfig controls the loopback ops HTTP surface.
type HTTPAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// MonitorConfig controls the WebSocket dashboard feed.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// LogConfig selects slog's level/format/output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a time.Duration that unmarshals from a YAML string like "200ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads config from a YAML file on top of Default(), then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Serval.URL == "" {
		return fmt.Errorf("serval.url is required")
	}

	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel entry missing name")
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = true

		if ch.FramesToSum < 1 || ch.FramesToSum > 100000 {
			return fmt.Errorf("channel %q: frames_to_sum must be in [1, 100000], got %d", ch.Name, ch.FramesToSum)
		}
		if ch.SumUpdateEvery < 1 || ch.SumUpdateEvery > 10000 {
			return fmt.Errorf("channel %q: sum_update_interval_frames must be in [1, 10000], got %d", ch.Name, ch.SumUpdateEvery)
		}
		if ch.Format < 0 || ch.Format > 4 {
			return fmt.Errorf("channel %q: format index %d out of range [0,4]", ch.Name, ch.Format)
		}
		if ch.Mode < 0 || ch.Mode > 4 {
			return fmt.Errorf("channel %q: mode index %d out of range [0,4]", ch.Name, ch.Mode)
		}
		if ch.IntegrationMode < 0 || ch.IntegrationMode > 2 {
			return fmt.Errorf("channel %q: integration_mode index %d out of range [0,2]", ch.Name, ch.IntegrationMode)
		}
		if ch.SplitStrategy < 0 || ch.SplitStrategy > 1 {
			return fmt.Errorf("channel %q: split_strategy index %d out of range [0,1]", ch.Name, ch.SplitStrategy)
		}
		if ch.IntegrationSize < -1 || ch.IntegrationSize > 32 {
			return fmt.Errorf("channel %q: integration_size %d out of range [-1,32]", ch.Name, ch.IntegrationSize)
		}
	}

	return nil
}
