// Package cli provides the command-line interface for Vigil remote
// configuration management.
//
// This package implements the CLI using the Orpheus framework, providing
// git-style subcommands over the vigil store and manager surfaces:
//
//   - get:   fetch one setting by key and label
//   - list:  list settings matching a key/label filter
//   - watch: run a manager and print every snapshot update
//   - info:  provider and version diagnostics
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package cli

import (
	"io"
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/vigil"
)

const version = "1.0.0"

// Manager provides CLI operations for Vigil remote configuration management.
type Manager struct {
	app         *orpheus.App
	out         io.Writer
	auditLogger *vigil.AuditLogger // Optional audit integration
}

// NewManager creates a new CLI manager powered by Orpheus.
func NewManager() *Manager {
	app := orpheus.New("vigil").
		SetDescription("Remote configuration polling and inspection").
		SetVersion(version)

	manager := &Manager{
		app: app,
		out: os.Stdout,
	}

	manager.setupStoreCommands()
	manager.setupWatchCommand()
	manager.setupUtilityCommands()

	return manager
}

// WithAudit enables audit logging for CLI operations.
func (m *Manager) WithAudit(auditLogger *vigil.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// WithOutput redirects command output, used by tests.
func (m *Manager) WithOutput(out io.Writer) *Manager {
	m.out = out
	return m
}

// Run executes the CLI application with the provided arguments.
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// setupStoreCommands configures the direct store inspection commands.
func (m *Manager) setupStoreCommands() {
	// get <key> [--label=] [--store=]
	getCmd := orpheus.NewCommand("get", "Fetch one setting by key")
	getCmd.SetHandler(m.handleGet)
	getCmd.AddFlag("store", "s", "", "Store URL (defaults to VIGIL_STORE_URL)")
	getCmd.AddFlag("label", "l", "", "Setting label")
	m.app.AddCommand(getCmd)

	// list [--key=] [--label=] [--store=]
	listCmd := orpheus.NewCommand("list", "List settings matching a filter")
	listCmd.SetHandler(m.handleList)
	listCmd.AddFlag("store", "s", "", "Store URL (defaults to VIGIL_STORE_URL)")
	listCmd.AddFlag("key", "k", "", "Key filter (empty or * matches all, trailing * is a prefix)")
	listCmd.AddFlag("label", "l", "", "Label filter")
	m.app.AddCommand(listCmd)
}

// setupWatchCommand configures the 'watch' command for live polling.
func (m *Manager) setupWatchCommand() {
	// watch [--profile=] [--interval=30s] [--filters=] [--sentinel-key=] ...
	watchCmd := orpheus.NewCommand("watch", "Poll a store and print snapshot updates")
	watchCmd.SetHandler(m.handleWatch)
	watchCmd.AddFlag("store", "s", "", "Store URL (defaults to VIGIL_STORE_URL)")
	watchCmd.AddFlag("profile", "p", "", "YAML profile file")
	watchCmd.AddFlag("interval", "i", "30s", "Polling interval")
	watchCmd.AddFlag("filters", "f", "", "Comma-separated key[@label] selectors")
	watchCmd.AddFlag("sentinel-key", "", "", "Sentinel setting key")
	watchCmd.AddFlag("sentinel-label", "", "", "Sentinel setting label")
	watchCmd.AddFlag("name", "n", "vigil", "Manager name used as log prefix")
	watchCmd.AddBoolFlag("verbose", "v", false, "Log manager diagnostics to stderr")
	m.app.AddCommand(watchCmd)
}

// setupUtilityCommands configures diagnostics commands.
func (m *Manager) setupUtilityCommands() {
	infoCmd := orpheus.NewCommand("info", "Provider and version diagnostics")
	infoCmd.SetHandler(m.handleInfo)
	m.app.AddCommand(infoCmd)
}
