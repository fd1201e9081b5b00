// profile.go: YAML profile files for Vigil
//
// A profile declares a complete manager setup in one YAML document, so tools
// and deployments can describe what to watch without code:
//
//	store: https://config.mycompany.com/api
//	interval: 30s
//	sentinel:
//	  key: app/sentinel
//	  label: prod
//	filters:
//	  - key: app/*
//	    label: prod
//	audit:
//	  enabled: true
//	  output_file: /var/log/vigil-audit.jsonl
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"os"
	"time"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// Profile is the YAML document describing one manager configuration.
type Profile struct {
	Store    string           `yaml:"store"`
	Interval string           `yaml:"interval"`
	Sentinel *ProfileSentinel `yaml:"sentinel"`
	Filters  []ProfileFilter  `yaml:"filters"`
	Audit    *ProfileAudit    `yaml:"audit"`
}

// ProfileFilter is one filter declaration in a profile.
type ProfileFilter struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// ProfileSentinel is the sentinel declaration in a profile.
type ProfileSentinel struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// ProfileAudit is the audit declaration in a profile.
type ProfileAudit struct {
	Enabled       bool   `yaml:"enabled"`
	OutputFile    string `yaml:"output_file"`
	MinLevel      string `yaml:"min_level"`
	BufferSize    int    `yaml:"buffer_size"`
	FlushInterval string `yaml:"flush_interval"`
}

// LoadProfile reads and parses a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) // #nosec G304 - profile path is user-supplied by design
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeProfileError, "failed to read profile").
			WithContext("path", path)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrap(err, ErrCodeProfileError, "failed to parse profile").
			WithContext("path", path)
	}
	return &profile, nil
}

// Config converts the profile into a manager Config with defaults applied.
// The store URL is returned through StoreURL, not through the Config, since
// Start takes the store separately.
func (p *Profile) Config() (*Config, error) {
	config := &Config{}

	if p.Interval != "" {
		interval, err := time.ParseDuration(p.Interval)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeProfileError, "invalid interval in profile")
		}
		config.PollInterval = interval
	}

	if p.Sentinel != nil {
		config.Sentinel = &SentinelKey{Key: p.Sentinel.Key, Label: p.Sentinel.Label}
	}

	for _, f := range p.Filters {
		config.Filters = append(config.Filters, Filter{KeyFilter: f.Key, LabelFilter: f.Label})
	}

	if p.Audit != nil {
		audit := AuditConfig{
			Enabled:    p.Audit.Enabled,
			OutputFile: p.Audit.OutputFile,
			BufferSize: p.Audit.BufferSize,
		}
		if p.Audit.MinLevel != "" {
			level, err := ParseAuditLevel(p.Audit.MinLevel)
			if err != nil {
				return nil, err
			}
			audit.MinLevel = level
		}
		if p.Audit.FlushInterval != "" {
			flush, err := time.ParseDuration(p.Audit.FlushInterval)
			if err != nil {
				return nil, errors.Wrap(err, ErrCodeProfileError, "invalid audit flush interval in profile")
			}
			audit.FlushInterval = flush
		}
		config.Audit = audit
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// StoreURL returns the store URL declared by the profile, if any.
func (p *Profile) StoreURL() string {
	return p.Store
}
