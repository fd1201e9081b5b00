// env_config.go: Environment Variables Support for Vigil
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// This file implements environment-based configuration loading for container
// deployments, mirroring the flag and profile surfaces.

package vigil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// EnvConfig represents manager configuration loaded from environment
// variables.
type EnvConfig struct {
	// Core configuration
	PollInterval  time.Duration `env:"VIGIL_POLL_INTERVAL"`
	StoreURL      string        `env:"VIGIL_STORE_URL"`
	SentinelKey   string        `env:"VIGIL_SENTINEL_KEY"`
	SentinelLabel string        `env:"VIGIL_SENTINEL_LABEL"`
	Filters       string        `env:"VIGIL_FILTERS"` // comma list of key[@label]

	// Audit configuration
	AuditEnabled       bool          `env:"VIGIL_AUDIT_ENABLED"`
	AuditOutputFile    string        `env:"VIGIL_AUDIT_OUTPUT_FILE"`
	AuditMinLevel      string        `env:"VIGIL_AUDIT_MIN_LEVEL"`
	AuditBufferSize    int           `env:"VIGIL_AUDIT_BUFFER_SIZE"`
	AuditFlushInterval time.Duration `env:"VIGIL_AUDIT_FLUSH_INTERVAL"`
}

// StoreURLFromEnv returns the VIGIL_STORE_URL value, if any. The store URL
// is resolved separately from Config because Start takes the store as its
// own argument.
func StoreURLFromEnv() string {
	return os.Getenv("VIGIL_STORE_URL")
}

// LoadConfigFromEnv loads manager configuration from VIGIL_* environment
// variables, with defaults applied for anything unset.
func LoadConfigFromEnv() (*Config, error) {
	envConfig, err := loadEnvVars()
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}

	config, err := convertEnvToConfig(envConfig)
	if err != nil {
		return nil, err
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadEnvVars reads the raw environment variables into an EnvConfig.
func loadEnvVars() (*EnvConfig, error) {
	env := &EnvConfig{
		StoreURL:        os.Getenv("VIGIL_STORE_URL"),
		SentinelKey:     os.Getenv("VIGIL_SENTINEL_KEY"),
		SentinelLabel:   os.Getenv("VIGIL_SENTINEL_LABEL"),
		Filters:         os.Getenv("VIGIL_FILTERS"),
		AuditOutputFile: os.Getenv("VIGIL_AUDIT_OUTPUT_FILE"),
		AuditMinLevel:   os.Getenv("VIGIL_AUDIT_MIN_LEVEL"),
	}

	var err error
	if env.PollInterval, err = envDuration("VIGIL_POLL_INTERVAL"); err != nil {
		return nil, err
	}
	if env.AuditFlushInterval, err = envDuration("VIGIL_AUDIT_FLUSH_INTERVAL"); err != nil {
		return nil, err
	}
	if env.AuditEnabled, err = envBool("VIGIL_AUDIT_ENABLED"); err != nil {
		return nil, err
	}
	if env.AuditBufferSize, err = envInt("VIGIL_AUDIT_BUFFER_SIZE"); err != nil {
		return nil, err
	}
	return env, nil
}

// convertEnvToConfig converts an EnvConfig into a manager Config.
func convertEnvToConfig(env *EnvConfig) (*Config, error) {
	config := &Config{PollInterval: env.PollInterval}

	if env.Filters != "" {
		filters, err := ParseFilters(env.Filters)
		if err != nil {
			return nil, err
		}
		config.Filters = filters
	}

	if env.SentinelKey != "" {
		config.Sentinel = &SentinelKey{Key: env.SentinelKey, Label: env.SentinelLabel}
	}

	if env.AuditEnabled {
		config.Audit = AuditConfig{
			Enabled:       true,
			OutputFile:    env.AuditOutputFile,
			BufferSize:    env.AuditBufferSize,
			FlushInterval: env.AuditFlushInterval,
		}
		if env.AuditMinLevel != "" {
			level, err := ParseAuditLevel(env.AuditMinLevel)
			if err != nil {
				return nil, err
			}
			config.Audit.MinLevel = level
		}
	}

	return config, nil
}

// ParseFilters parses a comma-separated filter specification of the form
// "key[@label],key2[@label2]" into a Filter slice, preserving declaration
// order. Shared by the environment loader and the CLI.
func ParseFilters(spec string) ([]Filter, error) {
	parts := strings.Split(spec, ",")
	filters := make([]Filter, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, label, _ := strings.Cut(part, "@")
		if key == "" {
			return nil, errors.New(ErrCodeInvalidConfig,
				"filter specification entry must have a key: "+part)
		}
		filters = append(filters, Filter{KeyFilter: key, LabelFilter: label})
	}
	return filters, nil
}

func envDuration(name string) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, ErrCodeInvalidConfig, "invalid duration in "+name)
	}
	return d, nil
}

func envBool(name string) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrap(err, ErrCodeInvalidConfig, "invalid boolean in "+name)
	}
	return b, nil
}

func envInt(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrap(err, ErrCodeInvalidConfig, "invalid integer in "+name)
	}
	return n, nil
}
