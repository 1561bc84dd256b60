package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rfsentry/cellmon/internal/sdr/hackrf"
)

const (
	SourceHackRF    = "hackrf"
	SourceSimulator = "simulator"
)

// Duration unmarshals YAML values like "5m" or "750ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the main application configuration
type Config struct {
	Settings SettingsConfig `yaml:"settings"`
	Source   SourceConfig   `yaml:"source"`
	GPS      GPSConfig      `yaml:"gps"`
	Registry RegistryConfig `yaml:"registry"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	ScanLog  ScanLogConfig  `yaml:"scanLog"`
	Server   ServerConfig   `yaml:"server"`
}

// SettingsConfig represents global application settings
type SettingsConfig struct {
	LogLevel string `yaml:"logLevel"`
}

// SourceConfig selects and configures the sample source
type SourceConfig struct {
	Type   string         `yaml:"type"`
	HackRF *hackrf.Config `yaml:"hackrf"`
}

// GPSConfig represents location provider settings. The serial device is
// expected to be configured for the receiver's baud rate already.
type GPSConfig struct {
	SerialPort string `yaml:"serialPort"`
	Simulate   bool   `yaml:"simulate"`
}

// RegistryConfig represents device registry persistence settings
type RegistryConfig struct {
	DataDirectory string   `yaml:"dataDirectory"`
	SaveEvery     int      `yaml:"saveEvery"`
	DeviceTTL     Duration `yaml:"deviceTTL"`
	FlushInterval Duration `yaml:"flushInterval"`
}

// MonitorConfig represents scan loop settings
type MonitorConfig struct {
	ScanInterval     Duration `yaml:"scanInterval"`
	IdleInterval     Duration `yaml:"idleInterval"`
	PublishInterval  Duration `yaml:"publishInterval"`
	LocationInterval Duration `yaml:"locationInterval"`
	MaxDevices       int      `yaml:"maxDevices"`
	SpectrumMaxBins  int      `yaml:"spectrumMaxBins"`
	FFTSize          int      `yaml:"fftSize"`
}

// ScanLogConfig represents the optional spectrum scan log
type ScanLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig represents the HTTP listener settings
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	config := Config{
		Settings: SettingsConfig{LogLevel: "info"},
		Source:   SourceConfig{Type: SourceSimulator},
		Registry: RegistryConfig{DataDirectory: "data"},
		Server:   ServerConfig{Listen: ":8080"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceSimulator:
	case SourceHackRF:
		if c.Source.HackRF != nil {
			if err := c.Source.HackRF.Validate(); err != nil {
				return fmt.Errorf("hackrf configuration: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown source type '%s'", c.Source.Type)
	}

	if c.Registry.SaveEvery < 0 {
		return fmt.Errorf("registry saveEvery must not be negative")
	}
	if c.ScanLog.Enabled && c.ScanLog.Path == "" {
		return fmt.Errorf("scanLog path is required when the scan log is enabled")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address is required")
	}
	if _, err := parseLogLevel(c.Settings.LogLevel); err != nil {
		return err
	}

	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLogLevel(c.Settings.LogLevel)
	return level
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level '%s'", s)
}
