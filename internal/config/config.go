package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// pianod daemon connection
	Daemon DaemonConfig `yaml:"daemon"`

	// HTTP bridge settings (daemon mode)
	Bridge BridgeConfig `yaml:"bridge"`

	// MPD protocol front-end settings (daemon mode)
	MPD MPDConfig `yaml:"mpd"`

	// Logging settings
	Log LogConfig `yaml:"log"`
}

// DaemonConfig describes how to reach and log into pianod
type DaemonConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"` // Empty disables login on connect
	Password string `yaml:"password,omitempty"`

	DialTimeout    Duration `yaml:"dial_timeout"`
	RequestTimeout Duration `yaml:"request_timeout"` // 0 waits forever
}

// BridgeConfig represents HTTP bridge settings
type BridgeConfig struct {
	Listen string `yaml:"listen"`
}

// MPDConfig represents MPD front-end settings
type MPDConfig struct {
	Listen string `yaml:"listen"` // Empty disables the MPD front-end
}

// LogConfig represents logging settings
type LogConfig struct {
	Protocol bool `yaml:"protocol"` // Log every protocol line
}

// Duration is a time.Duration written as "10s", "1m30s" in YAML
type Duration time.Duration

// UnmarshalYAML parses a duration string
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

// MarshalYAML writes the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Host:           "localhost",
			Port:           4445,
			Username:       "admin",
			Password:       "admin",
			DialTimeout:    Duration(5 * time.Second),
			RequestTimeout: Duration(10 * time.Second),
		},
		Bridge: BridgeConfig{
			Listen: "localhost:4446",
		},
		MPD: MPDConfig{
			Listen: "localhost:6600",
		},
	}
}

// LoadConfig loads configuration from file. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values that would otherwise fail at connect time
func (c *Config) Validate() error {
	if c.Daemon.Host == "" {
		return fmt.Errorf("daemon.host is empty")
	}
	if c.Daemon.Port < 1 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	if c.Daemon.DialTimeout < 0 || c.Daemon.RequestTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// SetHost overrides the daemon address
func (c *Config) SetHost(host string, port int) {
	if host != "" {
		c.Daemon.Host = host
	}
	if port != 0 {
		c.Daemon.Port = port
	}
}
