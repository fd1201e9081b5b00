// vigil: Client-side manager for remote key/value configuration
//
// Philosophy:
// - Minimal dependencies (AGILira ecosystem only: go-errors, go-timecache)
// - Polling-based conditional refresh with a sentinel short-circuit
// - Wholesale snapshot replacement, no merging, no caching policy
// - Thread-safe atomic snapshot reads, single refresh goroutine
// - Deterministic teardown via Stop()
//
// Example Usage:
//
//	store, _ := vigil.OpenStore("https://config.mycompany.com/api")
//	manager, err := vigil.Start(ctx, "checkout", store, vigil.Config{
//	    Filters:      []vigil.Filter{{KeyFilter: "checkout/*", LabelFilter: "prod"}},
//	    Sentinel:     &vigil.SentinelKey{Key: "checkout/sentinel", Label: "prod"},
//	    PollInterval: 30 * time.Second,
//	    OnUpdate: func(entries []vigil.Entry) {
//	        // React to the new snapshot
//	    },
//	})
//	defer manager.Stop()
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// Error codes for Vigil operations
const (
	ErrCodeInvalidConfig       = "VIGIL_INVALID_CONFIG"
	ErrCodeSettingNotFound     = "VIGIL_SETTING_NOT_FOUND"
	ErrCodeStoreError          = "VIGIL_STORE_ERROR"
	ErrCodeManagerStopped      = "VIGIL_MANAGER_STOPPED"
	ErrCodeInvalidPollInterval = "VIGIL_INVALID_POLL_INTERVAL"
	ErrCodeInvalidAuditConfig  = "VIGIL_INVALID_AUDIT_CONFIG"
	ErrCodeProfileError        = "VIGIL_PROFILE_ERROR"
)

// sentinelMissingMessage is the warning emitted when a declared sentinel key
// does not exist on the configuration server. The exact wording is part of
// the observable contract.
const sentinelMissingMessage = "sentinel configuration was declared but not found on config server, skipping configurations update"

// Manager periodically pulls key/value configuration from a remote store,
// keeps the latest complete snapshot, and notifies a listener when the
// snapshot is replaced.
//
// All snapshot mutation happens inside the refresh cycle, which is
// serialized: the poll loop schedules the next tick only after the previous
// one has fully completed, so ticks never overlap. Snapshot reads are
// lock-free through an atomic pointer.
type Manager struct {
	config Config
	name   string
	store  RemoteStore
	logger Logger

	// Current snapshot (atomic pointer for lock-free reads)
	snapshot atomic.Pointer[[]Entry]

	// Unix nano timestamp of the last completed refresh
	lastRefresh atomic.Int64

	// Last observed raw sentinel value; nil until first successful check.
	// Mutated only inside refresh, which refreshMu serializes.
	sentinelValue *string
	refreshMu     sync.Mutex

	auditLogger *AuditLogger

	running   atomic.Bool
	polling   bool
	ctx       context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// Start validates the configuration, performs the first refresh synchronously
// and, when a poll interval is configured, launches the background poll loop.
// It returns only after the first refresh cycle has completed; a failing
// first refresh fails Start.
//
// name is used solely to prefix the manager's log lines as "<name>: <msg>".
func Start(ctx context.Context, name string, store RemoteStore, config Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "remote store cannot be nil")
	}
	if name == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "manager name cannot be empty")
	}

	cfg := config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	auditLogger, err := NewAuditLogger(cfg.Audit)
	if err != nil {
		// Fall back to disabled audit if setup fails; audit must never
		// prevent the manager from starting.
		auditLogger, _ = NewAuditLogger(AuditConfig{Enabled: false})
	}

	mctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		config:      *cfg,
		name:        name,
		store:       store,
		logger:      newPrefixedLogger(name, cfg.Logger),
		auditLogger: auditLogger,
		ctx:         mctx,
		cancel:      cancel,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}

	initial := make([]Entry, 0)
	m.snapshot.Store(&initial)

	if err := m.refresh(ctx); err != nil {
		cancel()
		_ = auditLogger.Close()
		return nil, err
	}

	m.running.Store(true)
	m.auditLogger.LogManagerStart(name)

	if m.config.PollInterval > 0 {
		m.polling = true
		go m.pollLoop()
	}

	return m, nil
}

// GetConfigurations returns the snapshot produced by the most recently
// completed refresh as a defensive copy: mutating the returned slice never
// affects the manager's internal state.
func (m *Manager) GetConfigurations() []Entry {
	return copyEntries(*m.snapshot.Load())
}

// LastRefresh returns the completion time of the last non-skipped refresh,
// or the zero time when no refresh has completed yet.
func (m *Manager) LastRefresh() time.Time {
	n := m.lastRefresh.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Name returns the manager name used for log prefixing.
func (m *Manager) Name() string {
	return m.name
}

// IsRunning returns true if the manager has been started and not stopped.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// Refresh triggers one refresh cycle outside the polling schedule. It is
// serialized with the poll loop, so a manual refresh never interleaves with
// a scheduled one.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.running.Load() {
		return errors.New(ErrCodeManagerStopped, "manager is not running")
	}
	return m.refresh(ctx)
}

// Stop cancels the poll loop, waits for it to drain and releases the audit
// logger. After Stop the snapshot remains readable but no further refresh
// will run.
func (m *Manager) Stop() error {
	if !m.running.CompareAndSwap(true, false) {
		return errors.New(ErrCodeManagerStopped, "manager is not running")
	}

	m.cancel()
	close(m.stopCh)
	if m.polling {
		<-m.stoppedCh
	}

	m.auditLogger.LogManagerStop(m.name)
	if err := m.auditLogger.Close(); err != nil {
		return errors.Wrap(err, ErrCodeStoreError, "failed to close audit logger")
	}
	return nil
}

// Close is an alias for Stop() for defer-friendly resource management.
func (m *Manager) Close() error {
	return m.Stop()
}

// pollLoop repeats the refresh cycle on the configured interval. The timer
// is re-armed only after a refresh fully completes, so ticks self-reschedule
// and can never overlap; cycle time drifts by however long a refresh takes.
func (m *Manager) pollLoop() {
	defer close(m.stoppedCh)

	timer := time.NewTimer(m.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-timer.C:
			if err := m.refresh(m.ctx); err != nil {
				// A failing tick never stops the schedule: log, skip,
				// keep polling.
				m.logger.Error(fmt.Sprintf("configurations refresh failed: %v", err))
				m.auditLogger.LogRefreshError(m.name, err)
			}
			timer.Reset(m.config.PollInterval)
		}
	}
}

// refresh performs at most one conditional full refresh of the snapshot:
// sentinel check, filter fan-out, snapshot replacement, listener
// notification. It returns once the refresh has completed or been skipped.
func (m *Manager) refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if sentinel := m.config.Sentinel; sentinel != nil {
		proceed, err := m.checkSentinel(ctx, sentinel)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}

	entries, err := m.fetchAll(ctx)
	if err != nil {
		return err
	}

	m.snapshot.Store(&entries)
	m.lastRefresh.Store(timecache.CachedTimeNano())

	m.logger.Debug(fmt.Sprintf("configurations updated, %d entries", len(entries)))
	m.auditLogger.LogRefresh(m.name, len(entries))

	if m.config.OnUpdate != nil {
		// Synchronous by contract; listener panics propagate to the caller.
		m.config.OnUpdate(copyEntries(entries))
	}

	return nil
}

// checkSentinel fetches the sentinel setting and decides whether the full
// refresh should proceed. A missing sentinel or an unchanged value skips the
// tick and leaves the prior snapshot untouched.
func (m *Manager) checkSentinel(ctx context.Context, sentinel *SentinelKey) (bool, error) {
	setting, err := m.store.Get(ctx, sentinel.Key, sentinel.Label)
	if err != nil {
		if IsNotFound(err) {
			// The sentinel value stays unset so a later tick re-checks
			// from scratch once the key appears.
			m.logger.Warn(sentinelMissingMessage)
			m.auditLogger.LogSentinelMissing(m.name, sentinel.Key)
			return false, nil
		}
		return false, errors.Wrap(err, ErrCodeStoreError, "failed to fetch sentinel configuration").
			WithContext("key", sentinel.Key).
			WithContext("label", sentinel.Label)
	}

	if rawValueEqual(setting.Value, m.sentinelValue) {
		m.logger.Debug("sentinel configuration unchanged, skipping configurations update")
		m.auditLogger.LogRefreshSkipped(m.name)
		return false, nil
	}

	m.sentinelValue = setting.Value
	m.logger.Debug("sentinel configuration changed, updating configurations")
	return true, nil
}

// fetchAll lists every configured filter concurrently and rejoins the parsed
// results in filter-declaration order, with each filter's internal ordering
// preserved.
func (m *Manager) fetchAll(ctx context.Context) ([]Entry, error) {
	filters := m.config.Filters
	results := make([][]Entry, len(filters))
	errs := make([]error, len(filters))

	var wg sync.WaitGroup
	for i := range filters {
		wg.Add(1)
		go func(i int, f Filter) {
			defer wg.Done()

			settings, err := m.store.List(ctx, f.KeyFilter, f.LabelFilter)
			if err != nil {
				errs[i] = errors.Wrap(err, ErrCodeStoreError, "failed to list configurations").
					WithContext("key_filter", f.KeyFilter).
					WithContext("label_filter", f.LabelFilter)
				return
			}

			parsed := make([]Entry, 0, len(settings))
			for _, s := range settings {
				parsed = append(parsed, ParseEntry(s.Key, s.Value))
			}
			results[i] = parsed
		}(i, filters[i])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	entries := make([]Entry, 0, total)
	for _, r := range results {
		entries = append(entries, r...)
	}
	return entries, nil
}

// rawValueEqual compares two optional raw setting values: both absent, or
// both present and identical.
func rawValueEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
