// vigil_test.go: Testing the Vigil manager refresh cycle and scheduler
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/agilira/go-errors"
)

// fakeStore is a scriptable RemoteStore that counts calls and can inject
// delays and failures.
type fakeStore struct {
	mu          sync.Mutex
	settings    []Setting
	getErr      error
	listErr     error
	listDelay   time.Duration
	getCalls    int
	listCalls   int
	inFlight    int
	maxInFlight int
}

func (f *fakeStore) set(key, label, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := value
	for i := range f.settings {
		if f.settings[i].Key == key && f.settings[i].Label == label {
			f.settings[i].Value = &v
			return
		}
	}
	f.settings = append(f.settings, Setting{Key: key, Label: label, Value: &v})
}

func (f *fakeStore) setAbsent(key, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, Setting{Key: key, Label: label})
}

func (f *fakeStore) remove(key, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.settings {
		if f.settings[i].Key == key && f.settings[i].Label == label {
			f.settings = append(f.settings[:i], f.settings[i+1:]...)
			return
		}
	}
}

func (f *fakeStore) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *fakeStore) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeStore) Get(ctx context.Context, key, label string) (Setting, error) {
	f.mu.Lock()
	f.getCalls++
	err := f.getErr
	var found *Setting
	for i := range f.settings {
		if f.settings[i].Key == key && f.settings[i].Label == label {
			s := f.settings[i]
			found = &s
			break
		}
	}
	f.mu.Unlock()

	if err != nil {
		return Setting{}, err
	}
	if found == nil {
		return Setting{}, NewNotFoundError(key, label)
	}
	return *found, nil
}

func (f *fakeStore) List(ctx context.Context, keyFilter, labelFilter string) ([]Setting, error) {
	f.mu.Lock()
	f.listCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.listDelay
	err := f.listErr
	matched := make([]Setting, 0, len(f.settings))
	for _, s := range f.settings {
		if matchPattern(keyFilter, s.Key) && matchPattern(labelFilter, s.Label) {
			matched = append(matched, s)
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return matched, nil
}

// waitFor polls a condition until it holds or the deadline expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func TestStartPerformsInitialRefresh(t *testing.T) {
	store := &fakeStore{}
	store.set("app/alpha", "prod", `"a"`)
	store.set("app/beta", "prod", `{"n":1}`)
	store.set("other/gamma", "prod", `true`)

	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{{KeyFilter: "app/*", LabelFilter: "prod"}},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	entries := manager.GetConfigurations()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "app/alpha" || entries[1].Key != "app/beta" {
		t.Errorf("unexpected snapshot order: %q, %q", entries[0].Key, entries[1].Key)
	}
	if v, ok := entries[0].Value.Structured(); !ok || v != "a" {
		t.Errorf("expected structured value \"a\", got %v (ok=%v)", v, ok)
	}
	if manager.LastRefresh().IsZero() {
		t.Error("expected a non-zero last refresh time")
	}
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `1`)

	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{{KeyFilter: "key"}},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	first := manager.GetConfigurations()
	first[0].Key = "mutated"

	second := manager.GetConfigurations()
	if second[0].Key != "key" {
		t.Errorf("caller mutation leaked into internal snapshot: %q", second[0].Key)
	}
}

func TestFilterDeclarationOrderPreserved(t *testing.T) {
	store := &fakeStore{}
	store.set("b/one", "late", `1`)
	store.set("b/two", "late", `2`)
	store.set("a/one", "early", `3`)

	// The "late" filter is declared first, so its entries must come first
	// even though the store would list "a/one" before nothing.
	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{
			{KeyFilter: "b/*", LabelFilter: "late"},
			{KeyFilter: "a/*", LabelFilter: "early"},
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	entries := manager.GetConfigurations()
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Key
	}
	want := []string{"b/one", "b/two", "a/one"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot order = %v, want %v", got, want)
	}
}

func TestStructuredValueScenario(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "label", `{"something":true}`)

	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{{KeyFilter: "key", LabelFilter: "label"}},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	entries := manager.GetConfigurations()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Key != "key" {
		t.Errorf("entry key = %q, want %q", entries[0].Key, "key")
	}
	doc, ok := entries[0].Value.Structured()
	if !ok {
		t.Fatalf("expected a structured value, got kind %v", entries[0].Value.Kind())
	}
	want := map[string]interface{}{"something": true}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("decoded value = %v, want %v", doc, want)
	}
}

func TestListenerInvokedPerCompletedRefresh(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `"v"`)

	var mu sync.Mutex
	var calls [][]Entry
	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{{KeyFilter: "key"}},
		OnUpdate: func(entries []Entry) {
			mu.Lock()
			calls = append(calls, entries)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("manual refresh failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("listener calls = %d, want 2 (startup + manual)", len(calls))
	}
	for i, entries := range calls {
		if len(entries) != 1 || entries[0].Key != "key" {
			t.Errorf("call %d: unexpected snapshot %v", i, entries)
		}
	}

	// The listener gets its own copy; mutating it must not reach the manager.
	calls[0][0].Key = "mutated"
	if manager.GetConfigurations()[0].Key != "key" {
		t.Error("listener mutation leaked into internal snapshot")
	}
}

func TestSentinelUnchangedSkipsRefresh(t *testing.T) {
	store := &fakeStore{}
	store.set("sentinel", "", `1`)
	store.set("key", "", `"v"`)

	listenerCalls := 0
	manager, err := Start(context.Background(), "test", store, Config{
		Filters:  []Filter{{KeyFilter: "key"}},
		Sentinel: &SentinelKey{Key: "sentinel"},
		OnUpdate: func([]Entry) { listenerCalls++ },
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	if store.listCount() != 1 {
		t.Fatalf("initial refresh: list calls = %d, want 1", store.listCount())
	}

	// Second tick with an identical sentinel value: the fan-out must not run.
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if store.listCount() != 1 {
		t.Errorf("after skipped tick: list calls = %d, want 1", store.listCount())
	}
	if listenerCalls != 1 {
		t.Errorf("listener calls = %d, want 1 (skipped ticks do not notify)", listenerCalls)
	}
}

func TestSentinelChangeTriggersRefresh(t *testing.T) {
	store := &fakeStore{}
	store.set("sentinel", "", `1`)
	store.set("key", "", `"old"`)

	manager, err := Start(context.Background(), "test", store, Config{
		Filters:  []Filter{{KeyFilter: "key"}},
		Sentinel: &SentinelKey{Key: "sentinel"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	store.set("sentinel", "", `2`)
	store.set("key", "", `"new"`)

	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after sentinel change failed: %v", err)
	}
	if store.listCount() != 2 {
		t.Errorf("list calls = %d, want 2", store.listCount())
	}
	entries := manager.GetConfigurations()
	if v, _ := entries[0].Value.Structured(); v != "new" {
		t.Errorf("snapshot value = %v, want \"new\"", v)
	}

	// Unchanged again: back to skipping.
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("third tick failed: %v", err)
	}
	if store.listCount() != 2 {
		t.Errorf("after re-skip: list calls = %d, want 2", store.listCount())
	}
}

func TestSentinelNotFoundWarnsAndKeepsSnapshot(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `"v"`)

	var warnings []string
	manager, err := Start(context.Background(), "mgr", store, Config{
		Filters:  []Filter{{KeyFilter: "key"}},
		Sentinel: &SentinelKey{Key: "sentinel"},
		Logger: FuncLogger{
			WarnFn: func(msg string) { warnings = append(warnings, msg) },
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	want := "mgr: sentinel configuration was declared but not found on config server, skipping configurations update"
	if len(warnings) != 1 || warnings[0] != want {
		t.Fatalf("warnings = %q, want exactly [%q]", warnings, want)
	}
	if store.listCount() != 0 {
		t.Errorf("list calls = %d, want 0 (missing sentinel skips fan-out)", store.listCount())
	}
	if len(manager.GetConfigurations()) != 0 {
		t.Error("snapshot should remain empty while the sentinel is missing")
	}

	// Once the sentinel appears, the next tick refreshes normally.
	store.set("sentinel", "", `1`)
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after sentinel appeared failed: %v", err)
	}
	if len(manager.GetConfigurations()) != 1 {
		t.Error("expected snapshot after sentinel appeared")
	}
}

func TestSentinelWithoutPayloadSkipsInitialRefresh(t *testing.T) {
	store := &fakeStore{}
	store.setAbsent("sentinel", "")
	store.set("key", "", `"v"`)

	manager, err := Start(context.Background(), "test", store, Config{
		Filters:  []Filter{{KeyFilter: "key"}},
		Sentinel: &SentinelKey{Key: "sentinel"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	// An absent sentinel payload equals the initial unset value, so the
	// very first tick already counts as "unchanged".
	if store.listCount() != 0 {
		t.Errorf("list calls = %d, want 0", store.listCount())
	}
}

func TestSentinelFetchFailureFailsStart(t *testing.T) {
	store := &fakeStore{}
	store.setGetErr(errors.New(ErrCodeStoreError, "store unreachable"))

	_, err := Start(context.Background(), "test", store, Config{
		Sentinel: &SentinelKey{Key: "sentinel"},
	})
	if err == nil {
		t.Fatal("expected Start to fail on a non-404 sentinel error")
	}
}

func TestSentinelFetchFailureSkipsTickWhilePolling(t *testing.T) {
	store := &fakeStore{}
	store.set("sentinel", "", `1`)
	store.set("key", "", `"old"`)

	var mu sync.Mutex
	var errorLogs int
	manager, err := Start(context.Background(), "test", store, Config{
		Filters:      []Filter{{KeyFilter: "key"}},
		Sentinel:     &SentinelKey{Key: "sentinel"},
		PollInterval: 5 * time.Millisecond,
		Logger: FuncLogger{
			ErrorFn: func(string) {
				mu.Lock()
				errorLogs++
				mu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	// Break the sentinel fetch: ticks must fail, log and keep polling.
	store.setGetErr(errors.New(ErrCodeStoreError, "store unreachable"))
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errorLogs >= 2
	}, "failing ticks were not logged repeatedly")

	if !manager.IsRunning() {
		t.Fatal("manager stopped polling after a failing tick")
	}

	// Recover with a changed sentinel: polling must pick it up.
	store.set("sentinel", "", `2`)
	store.set("key", "", `"new"`)
	store.setGetErr(nil)
	waitFor(t, 2*time.Second, func() bool {
		entries := manager.GetConfigurations()
		if len(entries) != 1 {
			return false
		}
		v, _ := entries[0].Value.Structured()
		return v == "new"
	}, "manager did not recover after the sentinel fetch was fixed")
}

func TestPollTicksDoNotOverlap(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `"v"`)
	store.listDelay = 20 * time.Millisecond

	manager, err := Start(context.Background(), "test", store, Config{
		Filters:      []Filter{{KeyFilter: "key"}},
		PollInterval: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	waitFor(t, 2*time.Second, func() bool {
		return store.listCount() >= 4
	}, "polling did not produce enough ticks")

	store.mu.Lock()
	maxInFlight := store.maxInFlight
	store.mu.Unlock()
	if maxInFlight > 1 {
		t.Errorf("observed %d concurrent list calls; ticks must never overlap", maxInFlight)
	}
}

func TestFiltersFetchedConcurrently(t *testing.T) {
	store := &fakeStore{}
	store.set("a/one", "", `1`)
	store.set("b/one", "", `2`)
	store.listDelay = 30 * time.Millisecond

	start := time.Now()
	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{
			{KeyFilter: "a/*"},
			{KeyFilter: "b/*"},
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	store.mu.Lock()
	maxInFlight := store.maxInFlight
	store.mu.Unlock()
	if maxInFlight < 2 {
		t.Errorf("max concurrent list calls = %d, want 2 (per-filter fan-out)", maxInFlight)
	}
	if elapsed := time.Since(start); elapsed > 120*time.Millisecond {
		t.Errorf("refresh took %v; filters do not appear to run concurrently", elapsed)
	}
}

func TestStopHaltsPolling(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `"v"`)

	manager, err := Start(context.Background(), "test", store, Config{
		Filters:      []Filter{{KeyFilter: "key"}},
		PollInterval: 3 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return store.listCount() >= 2
	}, "polling never ticked")

	if err := manager.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if manager.IsRunning() {
		t.Error("manager reports running after Stop")
	}

	calls := store.listCount()
	time.Sleep(30 * time.Millisecond)
	if store.listCount() != calls {
		t.Error("polling continued after Stop")
	}

	if err := manager.Stop(); err == nil {
		t.Error("second Stop should fail")
	}
	if err := manager.Refresh(context.Background()); err == nil {
		t.Error("Refresh should fail after Stop")
	}
}

func TestStopWithoutPolling(t *testing.T) {
	store := &fakeStore{}
	manager, err := Start(context.Background(), "test", store, Config{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestEmptyFiltersYieldEmptySnapshot(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `"v"`)

	var received []Entry
	notified := false
	manager, err := Start(context.Background(), "test", store, Config{
		OnUpdate: func(entries []Entry) {
			notified = true
			received = entries
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	if len(manager.GetConfigurations()) != 0 {
		t.Error("expected an empty snapshot with no filters")
	}
	if !notified || len(received) != 0 {
		t.Errorf("listener: notified=%v entries=%v, want notified with empty snapshot", notified, received)
	}
}

func TestListFailureFailsStart(t *testing.T) {
	store := &fakeStore{}
	store.set("key", "", `"v"`)
	store.listErr = errors.New(ErrCodeStoreError, "list unavailable")

	_, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{{KeyFilter: "key"}},
	})
	if err == nil {
		t.Fatal("expected Start to fail when the initial list fails")
	}
}

func TestStartValidation(t *testing.T) {
	store := &fakeStore{}

	if _, err := Start(context.Background(), "test", nil, Config{}); err == nil {
		t.Error("expected an error for a nil store")
	}
	if _, err := Start(context.Background(), "", store, Config{}); err == nil {
		t.Error("expected an error for an empty manager name")
	}
	if _, err := Start(context.Background(), "test", store, Config{PollInterval: -time.Second}); err == nil {
		t.Error("expected an error for a negative poll interval")
	}
	if _, err := Start(context.Background(), "test", store, Config{Sentinel: &SentinelKey{}}); err == nil {
		t.Error("expected an error for a sentinel with an empty key")
	}
}

func TestAbsentAndRawValuesSurviveRefresh(t *testing.T) {
	store := &fakeStore{}
	store.setAbsent("empty", "")
	store.set("plain", "", "not json at all")

	manager, err := Start(context.Background(), "test", store, Config{
		Filters: []Filter{{KeyFilter: "*"}},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	entries := manager.GetConfigurations()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Value.IsAbsent() {
		t.Errorf("entry %q: expected absent value, got kind %v", entries[0].Key, entries[0].Value.Kind())
	}
	if raw, ok := entries[1].Value.Raw(); !ok || raw != "not json at all" {
		t.Errorf("entry %q: expected raw value, got %v", entries[1].Key, entries[1].Value)
	}
}
