package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
)

// Backend names accepted by scanning.backend.
const (
	BackendText = "text"
	BackendXML  = "xml"
)

// Config represents the complete anscanner configuration
type Config struct {
	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ScanningConfig holds scanning-related settings
type ScanningConfig struct {
	// Path or name of the nmap binary
	NmapPath string `yaml:"nmap_path" json:"nmap_path" validate:"required"`

	// Which backend drives nmap: text output parsing or XML output
	Backend string `yaml:"backend" json:"backend" validate:"oneof=text xml"`

	// Upper bound for a single nmap invocation
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout" validate:"gt=0"`

	// Number of hosts scanned for ports and OS at the same time
	Workers int `yaml:"workers" json:"workers" validate:"gte=1,lte=64"`

	// Discovery launches per second, 0 disables pacing
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`

	// Reject fallback prefixes that are not three IPv4 octets
	Strict bool `yaml:"strict" json:"strict"`

	// Explicit DNS server (host:port); empty uses the platform resolver
	DNSServer string `yaml:"dns_server" json:"dns_server" validate:"omitempty,hostname_port"`
}

// MetricsConfig holds the optional Prometheus textfile export settings
type MetricsConfig struct {
	// Textfile written after the run; empty disables the export
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			NmapPath:       "nmap",
			Backend:        BackendText,
			CommandTimeout: 5 * time.Minute,
			Workers:        1,
			RateLimit:      0,
			Strict:         false,
			DNSServer:      "",
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			TextfilePath: "",
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
// The result is not validated, so callers can apply overrides first.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder covers both.
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config (assumed YAML): %w", err)
		}
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.WrapConfigError(errors.CodeDirectoryCreate, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.WrapConfigError(errors.CodeFilePermission, "failed to write config file", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration. Failures are VALIDATION config
// errors naming the first offending field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return invalid(first.Namespace(), first.Value(), fmt.Errorf("failed %q check", first.Tag()))
		}
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return invalid("Config.Logging.Level", c.Logging.Level, fmt.Errorf("unknown log level"))
	}

	validLogFormats := map[logging.LogFormat]bool{
		logging.FormatText: true,
		logging.FormatJSON: true,
	}
	if !validLogFormats[c.Logging.Format] {
		return invalid("Config.Logging.Format", c.Logging.Format, fmt.Errorf("unknown log format"))
	}

	if c.Logging.Output == "" {
		return invalid("Config.Logging.Output", c.Logging.Output, fmt.Errorf("log output is required"))
	}

	return nil
}

func invalid(field string, value interface{}, cause error) error {
	err := errors.ErrConfigInvalid(field, value)
	err.Cause = cause
	return err
}

// UsesXMLBackend reports whether the nmap library backend is selected
func (c *Config) UsesXMLBackend() bool {
	return c.Scanning.Backend == BackendXML
}
