// store.go: Remote Configuration Store Surface for Vigil
//
// This implements the plugin-based store architecture for reaching remote
// key/value configuration services. The core stays dependency-free while
// store implementations provide the actual transport.
//
// BUILT-IN STORES:
//   memory://<name>        In-process store for tests and demos
//   http(s)://host/path    HTTP key/value endpoint
//
// MANUAL REGISTRATION:
//   vigil.RegisterStoreProvider(&MyCustomProvider{})
//
// USAGE:
//   store, err := vigil.OpenStore("https://config.mycompany.com/api")
//   store, err := vigil.OpenStore("memory://demo")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/agilira/go-errors"
)

// Setting is one raw entry as returned by a remote configuration store.
// Value is nil when the store holds the key without a payload.
type Setting struct {
	Key   string  `json:"key"`
	Label string  `json:"label,omitempty"`
	Value *string `json:"value,omitempty"`
}

// RemoteStore is the client surface the manager consumes. Implementations
// provide access to remote configuration services; the manager never talks
// to a transport directly.
//
// Get failures for missing keys must carry the ErrCodeSettingNotFound code
// so the manager can distinguish "sentinel not declared yet" from transport
// trouble. List preserves the store's own ordering in the returned slice.
type RemoteStore interface {
	// Get fetches a single setting by exact key and label.
	Get(ctx context.Context, key, label string) (Setting, error)

	// List fetches all settings matching a key/label filter.
	List(ctx context.Context, keyFilter, labelFilter string) ([]Setting, error)
}

// NewNotFoundError builds the canonical missing-setting error.
func NewNotFoundError(key, label string) error {
	return errors.New(ErrCodeSettingNotFound, "setting not found").
		WithContext("key", key).
		WithContext("label", label)
}

// IsNotFound reports whether err is the 404-equivalent missing-setting
// condition produced by a RemoteStore.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if coder, ok := err.(errors.ErrorCoder); ok {
		return string(coder.ErrorCode()) == ErrCodeSettingNotFound
	}
	return false
}

// StoreProvider opens RemoteStore instances for one URL scheme. Providers are
// registered globally and selected by scheme, so applications can reach new
// backends without touching the manager.
type StoreProvider interface {
	// Name returns a human-readable name for this provider (for debugging)
	Name() string

	// Scheme returns the URL scheme this provider handles (e.g., "memory", "https")
	Scheme() string

	// Validate validates that the provider can handle the given URL
	Validate(storeURL string) error

	// Open opens a store for the given URL
	Open(storeURL string) (RemoteStore, error)
}

// Global registry of store providers
var (
	storeProviders []StoreProvider
	storeMutex     sync.RWMutex
)

// RegisterStoreProvider registers a custom store provider. Providers are
// tried in registration order. Duplicate schemes are rejected.
func RegisterStoreProvider(provider StoreProvider) error {
	if provider == nil {
		return errors.New(ErrCodeInvalidConfig, "store provider cannot be nil")
	}

	scheme := provider.Scheme()
	if scheme == "" {
		return errors.New(ErrCodeInvalidConfig, "store provider scheme cannot be empty")
	}

	storeMutex.Lock()
	defer storeMutex.Unlock()

	for _, existing := range storeProviders {
		if existing.Scheme() == scheme {
			return errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("store provider for scheme '%s' already registered", scheme))
		}
	}

	storeProviders = append(storeProviders, provider)
	return nil
}

// GetStoreProvider returns the provider for the given URL scheme.
func GetStoreProvider(scheme string) (StoreProvider, error) {
	storeMutex.RLock()
	defer storeMutex.RUnlock()

	for _, provider := range storeProviders {
		if provider.Scheme() == scheme {
			return provider, nil
		}
	}

	return nil, errors.New(ErrCodeInvalidConfig,
		fmt.Sprintf("no store provider registered for scheme '%s'", scheme))
}

// ListStoreProviders returns a copy of the registered providers, useful for
// diagnostics and for discovering available store backends.
func ListStoreProviders() []StoreProvider {
	storeMutex.RLock()
	defer storeMutex.RUnlock()

	providers := make([]StoreProvider, len(storeProviders))
	copy(providers, storeProviders)
	return providers
}

// OpenStore opens a RemoteStore for the given URL, selecting the provider by
// URL scheme.
//
// Example:
//
//	store, err := vigil.OpenStore("memory://demo")
//	store, err := vigil.OpenStore("https://config.mycompany.com/api")
func OpenStore(storeURL string) (RemoteStore, error) {
	provider, err := validateAndGetStoreProvider(storeURL)
	if err != nil {
		return nil, err
	}
	return provider.Open(storeURL)
}

// validateAndGetStoreProvider validates the URL and resolves its provider.
func validateAndGetStoreProvider(storeURL string) (StoreProvider, error) {
	if storeURL == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "store URL cannot be empty")
	}

	parsedURL, err := url.Parse(storeURL)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid store URL")
	}

	if parsedURL.Scheme == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "store URL must have a scheme")
	}

	provider, err := GetStoreProvider(parsedURL.Scheme)
	if err != nil {
		return nil, err
	}

	if err := provider.Validate(storeURL); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "store URL validation failed")
	}

	return provider, nil
}
