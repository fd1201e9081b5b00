// audit_backend.go: Backend interface and implementations for the Vigil audit system
//
// This defines the pluggable backend architecture for audit persistence:
// a unified SQLite database for queryable trails, and JSONL files for
// grep-able, log-shipper-friendly output.
//
// Backend selection:
//  1. An OutputFile ending in .jsonl selects the JSONL backend.
//  2. Everything else attempts the SQLite unified backend first.
//  3. SQLite failure falls back to JSONL so auditing never blocks startup.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend abstracts audit storage so backends can be swapped without
// touching the AuditLogger API.
type auditBackend interface {
	// Write persists a batch of audit events.
	Write(events []AuditEvent) error

	// Flush commits pending writes to storage.
	Flush() error

	// Close releases all resources. The backend must not be used afterwards.
	Close() error
}

// createAuditBackend selects and initializes the backend for a configuration.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}

	jsonlBackend, jsonlErr := newJSONLBackend(config)
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}
	return jsonlBackend, nil
}

// unifiedAuditPath is the standard location of the host-wide SQLite audit
// database that consolidates events from every vigil manager.
func unifiedAuditPath() string {
	return filepath.Join(os.TempDir(), "vigil", "system-audit.db")
}

// sqliteAuditBackend implements auditBackend on a SQLite database.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.Mutex
	closed     bool
}

func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := unifiedAuditPath()
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".db" {
		dbPath = config.OutputFile
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	// WAL keeps writers from blocking the occasional audit query; NORMAL
	// sync is acceptable for a trail that tolerates losing the last second.
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}
	if err := backend.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return backend, nil
}

func (s *sqliteAuditBackend) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS audit_events (
		id           TEXT PRIMARY KEY,
		timestamp    TEXT NOT NULL,
		level        TEXT NOT NULL,
		event        TEXT NOT NULL,
		component    TEXT NOT NULL,
		manager      TEXT,
		process_id   INTEGER,
		process_name TEXT,
		context      TEXT,
		checksum     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_manager ON audit_events(manager);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}

	stmt, err := s.db.Prepare(`INSERT INTO audit_events (
		id, timestamp, level, event, component, manager,
		process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	s.insertStmt = stmt
	return nil
}

func (s *sqliteAuditBackend) Write(events []AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("audit backend is closed")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}

	stmt := tx.Stmt(s.insertStmt)
	for _, event := range events {
		var contextJSON []byte
		if event.Context != nil {
			contextJSON, _ = json.Marshal(event.Context)
		}
		if _, err := stmt.Exec(
			event.ID,
			event.Timestamp.Format(time.RFC3339Nano),
			event.Level.String(),
			event.Event,
			event.Component,
			event.Manager,
			event.ProcessID,
			event.ProcessName,
			string(contextJSON),
			event.Checksum,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit events: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Flush() error {
	// SQLite commits on transaction boundaries; nothing buffered here.
	return nil
}

func (s *sqliteAuditBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	return s.db.Close()
}

// jsonlAuditBackend implements auditBackend as one JSON document per line.
type jsonlAuditBackend struct {
	file *os.File
	mu   sync.Mutex
}

func newJSONLBackend(config AuditConfig) (*jsonlAuditBackend, error) {
	outputFile := config.OutputFile
	if outputFile == "" {
		outputFile = filepath.Join(os.TempDir(), "vigil", "audit.jsonl")
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(outputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &jsonlAuditBackend{file: file}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event: %w", err)
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event: %w", err)
		}
	}
	return nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Sync()
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
