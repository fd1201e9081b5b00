// Command handlers for the Vigil CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/vigil"
	"go.uber.org/zap"
)

// handleGet fetches one setting by key and prints its parsed value.
func (m *Manager) handleGet(ctx *orpheus.Context) error {
	key := ctx.GetArg(0)
	if key == "" {
		return errors.New(vigil.ErrCodeInvalidConfig, "usage: vigil get <key> [--label=] [--store=]")
	}

	store, err := m.resolveStore(ctx)
	if err != nil {
		return err
	}

	if m.auditLogger != nil {
		m.auditLogger.Log(vigil.AuditInfo, "cli_get", "cli", map[string]interface{}{"key": key})
	}

	setting, err := store.Get(context.Background(), key, ctx.GetFlagString("label"))
	if err != nil {
		if vigil.IsNotFound(err) {
			return errors.New(vigil.ErrCodeSettingNotFound, fmt.Sprintf("setting '%s' not found", key))
		}
		return err
	}

	return m.printEntries([]vigil.Entry{vigil.ParseEntry(setting.Key, setting.Value)})
}

// handleList lists the settings matching a key/label filter.
func (m *Manager) handleList(ctx *orpheus.Context) error {
	store, err := m.resolveStore(ctx)
	if err != nil {
		return err
	}

	if m.auditLogger != nil {
		m.auditLogger.Log(vigil.AuditInfo, "cli_list", "cli", nil)
	}

	settings, err := store.List(context.Background(), ctx.GetFlagString("key"), ctx.GetFlagString("label"))
	if err != nil {
		return err
	}

	entries := make([]vigil.Entry, 0, len(settings))
	for _, s := range settings {
		entries = append(entries, vigil.ParseEntry(s.Key, s.Value))
	}
	return m.printEntries(entries)
}

// handleWatch runs a manager against the store and prints every snapshot
// update until interrupted.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	store, err := m.resolveStore(ctx)
	if err != nil {
		return err
	}

	config, err := m.watchConfig(ctx)
	if err != nil {
		return err
	}

	config.OnUpdate = func(entries []vigil.Entry) {
		fmt.Fprintf(m.out, "--- snapshot %s (%d entries)\n", time.Now().Format(time.RFC3339), len(entries))
		_ = m.printEntries(entries)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := vigil.Start(runCtx, ctx.GetFlagString("name"), store, *config)
	if err != nil {
		return err
	}

	<-runCtx.Done()
	return manager.Stop()
}

// handleInfo prints version and registered store providers.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	fmt.Fprintf(m.out, "vigil %s\n", version)
	fmt.Fprintln(m.out, "store providers:")
	for _, provider := range vigil.ListStoreProviders() {
		fmt.Fprintf(m.out, "  %-8s %s\n", provider.Scheme()+"://", provider.Name())
	}
	return nil
}

// watchConfig assembles the watch command's manager configuration from the
// profile file (if given) and flag overrides.
func (m *Manager) watchConfig(ctx *orpheus.Context) (*vigil.Config, error) {
	config := &vigil.Config{}

	if profilePath := ctx.GetFlagString("profile"); profilePath != "" {
		profile, err := vigil.LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		config, err = profile.Config()
		if err != nil {
			return nil, err
		}
	}

	if rawInterval := ctx.GetFlagString("interval"); rawInterval != "" {
		interval, err := time.ParseDuration(rawInterval)
		if err != nil {
			return nil, errors.Wrap(err, vigil.ErrCodeInvalidConfig, "invalid polling interval")
		}
		config.PollInterval = interval
	}

	if spec := ctx.GetFlagString("filters"); spec != "" {
		filters, err := vigil.ParseFilters(spec)
		if err != nil {
			return nil, err
		}
		config.Filters = filters
	}

	if key := ctx.GetFlagString("sentinel-key"); key != "" {
		config.Sentinel = &vigil.SentinelKey{
			Key:   key,
			Label: ctx.GetFlagString("sentinel-label"),
		}
	}

	if ctx.GetFlagBool("verbose") {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return nil, errors.Wrap(err, vigil.ErrCodeInvalidConfig, "failed to build logger")
		}
		config.Logger = vigil.NewZapLogger(zl)
	}

	return config, nil
}
