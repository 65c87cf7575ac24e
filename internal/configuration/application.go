package configuration

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	SettingDeviceName = "COMPLETION_DEVICE_NAME"
	SettingMaxMinors  = "COMPLETION_MAX_MINORS"
	SettingReaders    = "COMPLETION_READERS"
	SettingLogLevel   = "COMPLETION_LOG_LEVEL"
	SettingNoColor    = "COMPLETION_NO_COLOR"

	DefaultDeviceName = "completion"
	DefaultMaxMinors  = 64
	DefaultReaders    = 2
	DefaultLogLevel   = slog.LevelDebug
)

// AppConfiguration is the principal structure holding the application
// configuration.
type AppConfiguration struct {
	DeviceName string
	MaxMinors  int
	Readers    int
	LogLevel   slog.Level
	NoColor    bool
}

// NewAppConfiguration returns a pointer to a new [AppConfiguration] holding
// the defaults.
func NewAppConfiguration() *AppConfiguration {
	return &AppConfiguration{
		DeviceName: DefaultDeviceName,
		MaxMinors:  DefaultMaxMinors,
		Readers:    DefaultReaders,
		LogLevel:   DefaultLogLevel,
	}
}

// Load returns an [AppConfiguration] with the defaults overlaid by the
// settings found in the given files. Without any files, the defaults are
// returned.
func (c *Handler) Load(filenames ...string) (*AppConfiguration, error) {
	config := NewAppConfiguration()

	if len(filenames) == 0 {
		return config, nil
	}

	envMap, err := c.ReadGeneric(filenames...)
	if err != nil {
		return nil, fmt.Errorf("(config-load) %w", err)
	}

	if name := c.MapKeyToString(envMap, SettingDeviceName); name != "" {
		config.DeviceName = name
	}

	if _, exists := envMap[SettingMaxMinors]; exists {
		config.MaxMinors = c.MapKeyToInt(envMap, SettingMaxMinors)
	}

	if _, exists := envMap[SettingReaders]; exists {
		config.Readers = c.MapKeyToInt(envMap, SettingReaders)
	}

	if level := c.MapKeyToString(envMap, SettingLogLevel); level != "" {
		config.LogLevel, err = ParseLogLevel(level)
		if err != nil {
			return nil, fmt.Errorf("(config-load) %w", err)
		}
	}

	if noColor, ok := c.MapKeyToBool(envMap, SettingNoColor); ok {
		config.NoColor = noColor
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("(config-load) %w", err)
	}

	return config, nil
}

// Validate checks the [AppConfiguration] for values out of range.
func (config *AppConfiguration) Validate() error {
	if config.DeviceName == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidValue, SettingDeviceName)
	}

	if config.MaxMinors < 1 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidValue, SettingMaxMinors)
	}

	if config.Readers < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, SettingReaders)
	}

	return nil
}

// ParseLogLevel converts one of debug, info, warn or error to a [slog.Level].
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return DefaultLogLevel, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
}
