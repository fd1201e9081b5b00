// audit.go: Refresh audit trail for Vigil
//
// This records every decision the refresh cycle makes — completed refreshes,
// sentinel skips, missing sentinels, failed ticks, manager lifecycle — so a
// production deployment can reconstruct why a snapshot is what it is.
//
// Features:
// - Immutable audit events with tamper-detection checksums
// - Buffered writes with background flushing
// - Pluggable storage backends (unified SQLite, JSONL)
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel converts a level name ("info", "warn", "critical",
// "security", case-insensitive) into an AuditLevel.
func ParseAuditLevel(s string) (AuditLevel, error) {
	switch strings.ToLower(s) {
	case "info":
		return AuditInfo, nil
	case "warn":
		return AuditWarn, nil
	case "critical":
		return AuditCritical, nil
	case "security":
		return AuditSecurity, nil
	default:
		return AuditInfo, errors.New(ErrCodeInvalidAuditConfig,
			fmt.Sprintf("unknown audit level '%s'", s))
	}
}

// AuditEvent represents a single auditable event
type AuditEvent struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Level       AuditLevel             `json:"level"`
	Event       string                 `json:"event"`
	Component   string                 `json:"component"`
	Manager     string                 `json:"manager,omitempty"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Checksum    string                 `json:"checksum"` // For tamper detection
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// Validate checks the audit configuration.
func (c *AuditConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BufferSize < 0 {
		return errors.New(ErrCodeInvalidAuditConfig, "audit buffer size cannot be negative")
	}
	if c.FlushInterval < 0 {
		return errors.New(ErrCodeInvalidAuditConfig, "audit flush interval cannot be negative")
	}
	return nil
}

// DefaultAuditConfig returns the audit configuration used when auditing is
// wanted but not tuned: unified SQLite storage, info level, buffered writes.
//
// The empty OutputFile selects the unified SQLite backend, which consolidates
// audit events from every vigil manager on the host into one queryable
// database. For JSONL output, set OutputFile with a .jsonl extension.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "", // Empty triggers unified SQLite backend
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditLogger provides buffered audit logging with pluggable backends.
//
// Events are buffered in memory and flushed either when the buffer fills or
// on the background flush interval, so auditing stays off the refresh cycle's
// critical path.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates an audit logger with automatic backend selection:
// SQLite unified storage when possible, JSONL as fallback. A disabled config
// yields a logger whose methods are all no-ops.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	if !config.Enabled {
		return &AuditLogger{config: config}, nil
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit backend: %w", err)
	}

	logger := &AuditLogger{
		config:      config,
		backend:     backend,
		buffer:      make([]AuditEvent, 0, config.BufferSize),
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: "vigil",
	}

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records an audit event. Safe to call on a nil or disabled logger.
func (al *AuditLogger) Log(level AuditLevel, event, manager string, context map[string]interface{}) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	// Cached timestamp: audit volume tracks refresh frequency, not syscalls.
	auditEvent := AuditEvent{
		ID:          uuid.NewString(),
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   "vigil",
		Manager:     manager,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = generateChecksum(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe()
	}
	al.bufferMu.Unlock()
}

// LogRefresh records a completed refresh with its snapshot size.
func (al *AuditLogger) LogRefresh(manager string, entries int) {
	al.Log(AuditInfo, "refresh_completed", manager, map[string]interface{}{
		"entries": entries,
	})
}

// LogRefreshSkipped records a tick skipped because the sentinel was unchanged.
func (al *AuditLogger) LogRefreshSkipped(manager string) {
	al.Log(AuditInfo, "refresh_skipped", manager, nil)
}

// LogSentinelMissing records a declared sentinel that the server does not hold.
func (al *AuditLogger) LogSentinelMissing(manager, key string) {
	al.Log(AuditWarn, "sentinel_missing", manager, map[string]interface{}{
		"key": key,
	})
}

// LogRefreshError records a failed refresh tick.
func (al *AuditLogger) LogRefreshError(manager string, err error) {
	al.Log(AuditCritical, "refresh_error", manager, map[string]interface{}{
		"error": err.Error(),
	})
}

// LogManagerStart records manager startup.
func (al *AuditLogger) LogManagerStart(manager string) {
	al.Log(AuditInfo, "manager_start", manager, nil)
}

// LogManagerStop records manager shutdown.
func (al *AuditLogger) LogManagerStop(manager string) {
	al.Log(AuditInfo, "manager_stop", manager, nil)
}

// Flush immediately writes all buffered events.
func (al *AuditLogger) Flush() error {
	if al == nil || al.backend == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Close gracefully shuts down the audit logger, flushing pending events.
func (al *AuditLogger) Close() error {
	if al == nil || al.backend == nil {
		return nil
	}

	var err error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}

		if flushErr := al.Flush(); flushErr != nil {
			err = fmt.Errorf("failed to flush audit logger during close: %w", flushErr)
			return
		}
		if closeErr := al.backend.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close audit backend: %w", closeErr)
		}
	})
	return err
}

// flushLoop runs the background flush process
func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush()
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to backend storage (caller must hold bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}
	if err := al.backend.Write(al.buffer); err != nil {
		return err
	}
	al.buffer = al.buffer[:0]
	return al.backend.Flush()
}

// generateChecksum produces the tamper-detection hash for an event.
func generateChecksum(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		event.ID,
		event.Timestamp.Format(time.RFC3339Nano),
		event.Event, event.Component, event.Manager)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
