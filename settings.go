// settings.go: Unified settings layer for applications embedding Vigil
//
// Combines the configuration sources an embedding application cares about —
// command-line flags (FlashFlags), VIGIL_* environment variables, and YAML
// profile files — into one precedence-ordered surface that produces a
// manager Config:
//
//	flags > environment > profile file > defaults
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// SettingsManager resolves a manager Config from flags, environment and an
// optional profile file.
type SettingsManager struct {
	flags   *flashflags.FlagSet
	appName string
}

// NewSettingsManager creates a settings manager with the standard vigil
// flag set registered under the given application name.
func NewSettingsManager(appName string) *SettingsManager {
	flags := flashflags.New(appName)
	flags.String("store", "", "Remote store URL (memory://, http://, https://)")
	flags.Duration("poll-interval", 0, "Polling interval (0 disables polling)")
	flags.String("sentinel-key", "", "Sentinel setting key")
	flags.String("sentinel-label", "", "Sentinel setting label")
	flags.String("filters", "", "Comma-separated key[@label] selectors")
	flags.String("profile", "", "YAML profile file path")
	flags.Bool("audit", false, "Enable the refresh audit trail")
	flags.String("audit-output", "", "Audit output file (.db or .jsonl)")

	return &SettingsManager{
		flags:   flags,
		appName: appName,
	}
}

// SetDescription sets the application description for help text.
func (sm *SettingsManager) SetDescription(description string) *SettingsManager {
	sm.flags.SetDescription(description)
	return sm
}

// SetVersion sets the application version for help text.
func (sm *SettingsManager) SetVersion(version string) *SettingsManager {
	sm.flags.SetVersion(version)
	return sm
}

// Parse parses command-line arguments and binds environment variables with
// the uppercased application name as prefix (e.g. VIGIL_STORE).
func (sm *SettingsManager) Parse(args []string) error {
	sm.flags.SetEnvPrefix(strings.ToUpper(sm.appName))
	if err := sm.flags.Parse(args); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags")
	}
	return nil
}

// PrintUsage prints help information for all flags.
func (sm *SettingsManager) PrintUsage() {
	sm.flags.PrintHelp()
}

// StoreURL resolves the store URL: flag first, then profile.
func (sm *SettingsManager) StoreURL() (string, error) {
	if storeURL := sm.flags.GetString("store"); storeURL != "" {
		return storeURL, nil
	}
	if profilePath := sm.flags.GetString("profile"); profilePath != "" {
		profile, err := LoadProfile(profilePath)
		if err != nil {
			return "", err
		}
		return profile.StoreURL(), nil
	}
	return "", nil
}

// Config builds the manager Config: profile file values first, overridden by
// any flag (or bound environment variable) the user actually set.
func (sm *SettingsManager) Config() (*Config, error) {
	config := &Config{}

	if profilePath := sm.flags.GetString("profile"); profilePath != "" {
		profile, err := LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		config, err = profile.Config()
		if err != nil {
			return nil, err
		}
	}

	if interval := sm.flags.GetDuration("poll-interval"); interval != 0 {
		config.PollInterval = interval
	}
	if key := sm.flags.GetString("sentinel-key"); key != "" {
		config.Sentinel = &SentinelKey{
			Key:   key,
			Label: sm.flags.GetString("sentinel-label"),
		}
	}
	if spec := sm.flags.GetString("filters"); spec != "" {
		filters, err := ParseFilters(spec)
		if err != nil {
			return nil, err
		}
		config.Filters = filters
	}
	if sm.flags.GetBool("audit") {
		config.Audit = AuditConfig{
			Enabled:       true,
			OutputFile:    sm.flags.GetString("audit-output"),
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		}
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
