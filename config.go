// config.go: Configuration surface for the Vigil manager
//
// Copyright (c) 2025 AGILira
// Series: AGILira System Libraries
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"time"

	"github.com/agilira/go-errors"
)

// Filter selects a subset of remote settings by key and label pattern.
// Filters are immutable once the manager starts; they are applied in
// declaration order and their results are concatenated in that order.
type Filter struct {
	// KeyFilter selects setting keys. Empty or "*" matches every key;
	// a trailing "*" matches by prefix; anything else matches exactly.
	KeyFilter string

	// LabelFilter selects setting labels with the same pattern rules.
	LabelFilter string
}

// SentinelKey identifies one remote setting whose value acts as a cheap
// change signal: as long as its value is unchanged between ticks, the full
// filter fan-out is skipped and the prior snapshot is kept.
type SentinelKey struct {
	Key   string
	Label string
}

// UpdateListener receives the complete new snapshot once per completed
// (non-skipped) refresh, including the first one at startup. It is invoked
// synchronously from the refresh cycle and is not recovered: a panicking
// listener propagates to the refresh caller.
type UpdateListener func(entries []Entry)

// Config configures a Manager. The zero value is valid: no filters, no
// polling, no sentinel, silent logging. Treat it as a value object; Start
// copies it, so mutating a Config after Start has no effect on the manager.
type Config struct {
	// Filters select which remote settings make up the snapshot.
	// May be empty, in which case every refresh yields an empty snapshot.
	Filters []Filter

	// PollInterval is the delay between the end of one refresh and the start
	// of the next. Zero disables polling entirely: the manager performs only
	// the single startup refresh.
	PollInterval time.Duration

	// Sentinel optionally short-circuits refreshes: when set, a tick first
	// fetches this single setting and skips the filter fan-out if its value
	// has not changed since the last completed check.
	Sentinel *SentinelKey

	// Logger receives the manager's diagnostics, prefixed with the manager
	// name. Defaults to NopLogger.
	Logger Logger

	// OnUpdate, when set, is invoked once per completed refresh with the new
	// snapshot.
	OnUpdate UpdateListener

	// Audit configures the optional refresh audit trail. Disabled unless
	// explicitly enabled.
	Audit AuditConfig
}

// WithDefaults returns a copy of the configuration with defaults applied.
// The receiver is not modified.
func (c *Config) WithDefaults() *Config {
	config := *c

	// Detach the filter slice from the caller so later mutation of the
	// original slice cannot reach the manager.
	config.Filters = append([]Filter(nil), c.Filters...)

	if config.Sentinel != nil {
		sentinel := *c.Sentinel
		config.Sentinel = &sentinel
	}

	if config.Logger == nil {
		config.Logger = NopLogger{}
	}

	if config.Audit.Enabled {
		if config.Audit.BufferSize <= 0 {
			config.Audit.BufferSize = 1000
		}
		if config.Audit.FlushInterval <= 0 {
			config.Audit.FlushInterval = 5 * time.Second
		}
	}

	return &config
}

// Validate checks the configuration for conditions that cannot produce a
// working manager. Called by Start after WithDefaults.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return errors.New(ErrCodeInvalidPollInterval, "poll interval cannot be negative").
			WithContext("poll_interval", c.PollInterval.String())
	}

	if c.Sentinel != nil && c.Sentinel.Key == "" {
		return errors.New(ErrCodeInvalidConfig, "sentinel key cannot be empty")
	}

	if err := c.Audit.Validate(); err != nil {
		return err
	}

	return nil
}
