package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.max_payload")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateDelay()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError
	s := c.Server

	if s.WorkDir == "" {
		errors = append(errors, ValidationError{
			Field:   "server.work_dir",
			Value:   s.WorkDir,
			Message: "must not be empty",
		})
	}

	if s.MaxTarget <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.max_target",
			Value:   s.MaxTarget,
			Message: "must be positive",
		})
	}
	if s.MaxPayload <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.max_payload",
			Value:   s.MaxPayload,
			Message: "must be positive",
		})
	}

	// The shared outputs must be distinct or two roles would share one lock.
	outputs := map[string]string{
		"server.read_output":  s.ReadOutput,
		"server.empty_output": s.EmptyOutput,
		"server.audit_log":    s.AuditLog,
	}
	seen := make(map[string]string)
	for _, field := range []string{"server.read_output", "server.empty_output", "server.audit_log"} {
		name := outputs[field]
		if name == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: "must not be empty",
			})
			continue
		}
		key := filepath.Clean(name)
		if prev, ok := seen[key]; ok {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: fmt.Sprintf("must differ from %s", prev),
			})
			continue
		}
		seen[key] = field
	}

	if s.Follow && (s.Input == "" || s.Input == "-") {
		errors = append(errors, ValidationError{
			Field:   "server.follow",
			Value:   s.Follow,
			Message: "requires server.input to name a file",
		})
	}

	return errors
}

// validateDelay validates the DelayConfig
func (c *Config) validateDelay() []ValidationError {
	var errors []ValidationError
	d := c.Delay

	nonNegative := []struct {
		field string
		value int
	}{
		{"delay.write_per_char_ms", d.WritePerCharMs},
		{"delay.empty_min_s", d.EmptyMinS},
		{"delay.empty_max_s", d.EmptyMaxS},
		{"delay.arrival_short_ms", d.ArrivalShortMs},
		{"delay.arrival_long_ms", d.ArrivalLongMs},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "must be non-negative",
			})
		}
	}

	if d.EmptyMaxS < d.EmptyMinS {
		errors = append(errors, ValidationError{
			Field:   "delay.empty_max_s",
			Value:   d.EmptyMaxS,
			Message: fmt.Sprintf("must be at least delay.empty_min_s (%d)", d.EmptyMinS),
		})
	}

	if d.ArrivalLongPercent < 0 || d.ArrivalLongPercent > 100 {
		errors = append(errors, ValidationError{
			Field:   "delay.arrival_long_percent",
			Value:   d.ArrivalLongPercent,
			Message: "must be between 0 and 100",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
