// store_memory.go: In-process remote store for Vigil
//
// MemoryStore is a fully functional RemoteStore held in process memory.
// It backs the memory:// URL scheme, the test suite, and CLI demos; named
// stores opened through OpenStore("memory://<name>") are shared process-wide
// so a test or demo can seed the same store the manager reads.
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/agilira/go-errors"
)

// MemoryStore is a seedable in-memory RemoteStore. Settings keep their
// insertion order, which becomes the List order, so snapshots built from a
// MemoryStore are deterministic.
type MemoryStore struct {
	mu       sync.RWMutex
	settings []Setting
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Set stores a value under key/label, replacing any existing setting in place
// so the original ordering is preserved.
func (s *MemoryStore) Set(key, label, value string) {
	v := value
	s.Put(Setting{Key: key, Label: label, Value: &v})
}

// SetAbsent stores a key/label with no payload.
func (s *MemoryStore) SetAbsent(key, label string) {
	s.Put(Setting{Key: key, Label: label})
}

// Put stores a complete setting, replacing any existing key/label pair.
func (s *MemoryStore) Put(setting Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.settings {
		if s.settings[i].Key == setting.Key && s.settings[i].Label == setting.Label {
			s.settings[i] = setting
			return
		}
	}
	s.settings = append(s.settings, setting)
}

// Delete removes a key/label pair. Deleting a missing pair is a no-op.
func (s *MemoryStore) Delete(key, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.settings {
		if s.settings[i].Key == key && s.settings[i].Label == label {
			s.settings = append(s.settings[:i], s.settings[i+1:]...)
			return
		}
	}
}

// Len returns the number of stored settings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.settings)
}

// Get implements RemoteStore.
func (s *MemoryStore) Get(ctx context.Context, key, label string) (Setting, error) {
	if err := ctx.Err(); err != nil {
		return Setting{}, errors.Wrap(err, ErrCodeStoreError, "context canceled")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, setting := range s.settings {
		if setting.Key == key && setting.Label == label {
			return setting, nil
		}
	}
	return Setting{}, NewNotFoundError(key, label)
}

// List implements RemoteStore. Matching settings are returned in insertion
// order as copies.
func (s *MemoryStore) List(ctx context.Context, keyFilter, labelFilter string) ([]Setting, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeStoreError, "context canceled")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		if matchPattern(keyFilter, setting.Key) && matchPattern(labelFilter, setting.Label) {
			matched = append(matched, setting)
		}
	}
	return matched, nil
}

// matchPattern applies the filter rules: empty or "*" matches everything,
// a trailing "*" matches by prefix, anything else matches exactly.
func matchPattern(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == value
}

// Shared named stores for the memory:// scheme
var (
	memoryStores   = make(map[string]*MemoryStore)
	memoryStoresMu sync.Mutex
)

// OpenMemoryStore returns the process-wide shared MemoryStore with the given
// name, creating it on first use. The same instance is returned to everyone,
// so seeding code and managers opened via "memory://<name>" see one store.
func OpenMemoryStore(name string) *MemoryStore {
	memoryStoresMu.Lock()
	defer memoryStoresMu.Unlock()

	store, ok := memoryStores[name]
	if !ok {
		store = NewMemoryStore()
		memoryStores[name] = store
	}
	return store
}

// memoryProvider serves the memory:// URL scheme.
type memoryProvider struct{}

func (p *memoryProvider) Name() string {
	return "Vigil In-Memory Store Provider"
}

func (p *memoryProvider) Scheme() string {
	return "memory"
}

func (p *memoryProvider) Validate(storeURL string) error {
	parsed, err := url.Parse(storeURL)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "invalid memory store URL")
	}
	if parsed.Host == "" {
		return errors.New(ErrCodeInvalidConfig, "memory store URL requires a name: memory://<name>")
	}
	return nil
}

func (p *memoryProvider) Open(storeURL string) (RemoteStore, error) {
	parsed, err := url.Parse(storeURL)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid memory store URL")
	}
	return OpenMemoryStore(parsed.Host), nil
}

func init() {
	// Built-in providers register at package load, mirroring the
	// import-based auto-registration used by external providers.
	_ = RegisterStoreProvider(&memoryProvider{})
}
