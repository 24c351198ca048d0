// Package config loads the file server configuration through viper.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Delay    DelayConfig    `mapstructure:"delay" yaml:"delay"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls where commands come from and where results go
type ServerConfig struct {
	// WorkDir is the directory every target identifier is resolved against
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
	// Input is the control stream: "-" (default) for stdin, otherwise a file path
	Input string `mapstructure:"input" yaml:"input"`
	// Follow keeps reading a file input as it grows instead of stopping at EOF
	Follow bool `mapstructure:"follow" yaml:"follow"`
	// Join makes the dispatcher wait for each request before reading the next line
	Join bool `mapstructure:"join" yaml:"join"`
	// Prompt prints "> " before each line when stdin is a terminal
	Prompt bool `mapstructure:"prompt" yaml:"prompt"`
	// MaxTarget bounds the target identifier length in bytes
	MaxTarget int `mapstructure:"max_target" yaml:"max_target"`
	// MaxPayload bounds the write payload length in bytes
	MaxPayload int `mapstructure:"max_payload" yaml:"max_payload"`
	// ReadOutput accumulates the results of read requests
	ReadOutput string `mapstructure:"read_output" yaml:"read_output"`
	// EmptyOutput accumulates what empty requests removed
	EmptyOutput string `mapstructure:"empty_output" yaml:"empty_output"`
	// AuditLog accumulates a timestamped copy of every command line
	AuditLog string `mapstructure:"audit_log" yaml:"audit_log"`
}

// RegistryConfig controls the lock registry
type RegistryConfig struct {
	// EvictIdle drops a resource's lock once nothing references it
	EvictIdle bool `mapstructure:"evict_idle" yaml:"evict_idle"`
}

// DelayConfig controls the simulated service times
type DelayConfig struct {
	// Instant skips every simulated delay
	Instant bool `mapstructure:"instant" yaml:"instant"`
	// WritePerCharMs is the service time per payload byte of a write
	WritePerCharMs int `mapstructure:"write_per_char_ms" yaml:"write_per_char_ms"`
	// EmptyMinS and EmptyMaxS bound the uniformly random service time of an empty
	EmptyMinS int `mapstructure:"empty_min_s" yaml:"empty_min_s"`
	EmptyMaxS int `mapstructure:"empty_max_s" yaml:"empty_max_s"`
	// ArrivalShortMs and ArrivalLongMs are the two pre-lock delays a request
	// picks between; ArrivalLongPercent is the chance of the long one
	ArrivalShortMs     int `mapstructure:"arrival_short_ms" yaml:"arrival_short_ms"`
	ArrivalLongMs      int `mapstructure:"arrival_long_ms" yaml:"arrival_long_ms"`
	ArrivalLongPercent int `mapstructure:"arrival_long_percent" yaml:"arrival_long_percent"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes JSON logs to Dir/filesrv.log
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Dir holds the log file; empty means the work directory
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Verbose prints colored log lines to the console
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	// MaxSizeMB rotates the log file past this size
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WorkDir:     ".",
			Input:       "-",
			Follow:      false,
			Join:        false,
			Prompt:      true,
			MaxTarget:   50,
			MaxPayload:  50,
			ReadOutput:  "read.txt",
			EmptyOutput: "empty.txt",
			AuditLog:    "commands.txt",
		},
		Registry: RegistryConfig{
			EvictIdle: false,
		},
		Delay: DelayConfig{
			Instant:            false,
			WritePerCharMs:     25,
			EmptyMinS:          7,
			EmptyMaxS:          10,
			ArrivalShortMs:     1000,
			ArrivalLongMs:      6000,
			ArrivalLongPercent: 20,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			Verbose:    false,
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// WritePerChar returns the per-byte write delay as a time.Duration
func (d *DelayConfig) WritePerChar() time.Duration {
	return time.Duration(d.WritePerCharMs) * time.Millisecond
}

// EmptyRange returns the bounds of the empty delay
func (d *DelayConfig) EmptyRange() (time.Duration, time.Duration) {
	return time.Duration(d.EmptyMinS) * time.Second, time.Duration(d.EmptyMaxS) * time.Second
}

// Arrival returns the short and long pre-lock delays
func (d *DelayConfig) Arrival() (time.Duration, time.Duration) {
	return time.Duration(d.ArrivalShortMs) * time.Millisecond, time.Duration(d.ArrivalLongMs) * time.Millisecond
}

// LogDir returns the directory for the log file
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return c.Server.WorkDir
}

// Reserved returns the identifiers of the shared output resources
func (s *ServerConfig) Reserved() []string {
	return []string{s.ReadOutput, s.EmptyOutput, s.AuditLog}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Server defaults
	v.SetDefault("server.work_dir", defaults.Server.WorkDir)
	v.SetDefault("server.input", defaults.Server.Input)
	v.SetDefault("server.follow", defaults.Server.Follow)
	v.SetDefault("server.join", defaults.Server.Join)
	v.SetDefault("server.prompt", defaults.Server.Prompt)
	v.SetDefault("server.max_target", defaults.Server.MaxTarget)
	v.SetDefault("server.max_payload", defaults.Server.MaxPayload)
	v.SetDefault("server.read_output", defaults.Server.ReadOutput)
	v.SetDefault("server.empty_output", defaults.Server.EmptyOutput)
	v.SetDefault("server.audit_log", defaults.Server.AuditLog)

	// Registry defaults
	v.SetDefault("registry.evict_idle", defaults.Registry.EvictIdle)

	// Delay defaults
	v.SetDefault("delay.instant", defaults.Delay.Instant)
	v.SetDefault("delay.write_per_char_ms", defaults.Delay.WritePerCharMs)
	v.SetDefault("delay.empty_min_s", defaults.Delay.EmptyMinS)
	v.SetDefault("delay.empty_max_s", defaults.Delay.EmptyMaxS)
	v.SetDefault("delay.arrival_short_ms", defaults.Delay.ArrivalShortMs)
	v.SetDefault("delay.arrival_long_ms", defaults.Delay.ArrivalLongMs)
	v.SetDefault("delay.arrival_long_percent", defaults.Delay.ArrivalLongPercent)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.verbose", defaults.Logging.Verbose)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "filesrv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".filesrv"
	}
	return filepath.Join(home, ".config", "filesrv")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
