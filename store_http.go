// store_http.go: HTTP remote store for Vigil
//
// HTTPStore reaches a configuration service over plain HTTP(S):
//
//	GET {base}/kv/{key}?label={label}          -> one setting (404 when missing)
//	GET {base}/kv?key={filter}&label={filter}  -> {"items": [settings...]}
//
// Settings travel as {"key": ..., "label": ..., "value": ...} JSON documents.
// The store applies no retries and no backoff; failures surface to the
// refresh cycle unchanged. An optional client-side rate limiter caps the
// request rate against shared configuration services.
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"golang.org/x/time/rate"
)

// HTTPStoreOptions tunes an HTTPStore. The zero value (or nil) selects the
// defaults: 30s timeout, no extra headers, no rate limiting.
type HTTPStoreOptions struct {
	// Timeout bounds each individual request.
	Timeout time.Duration

	// Headers are added to every request (authentication tokens, tracing).
	Headers map[string]string

	// RequestsPerSecond caps outgoing requests when > 0.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size; defaults to 1 when limiting.
	Burst int

	// Client overrides the HTTP client entirely; Timeout is ignored then.
	Client *http.Client
}

// DefaultHTTPStoreOptions returns production-ready HTTP store options.
func DefaultHTTPStoreOptions() *HTTPStoreOptions {
	return &HTTPStoreOptions{
		Timeout: 30 * time.Second,
		Headers: make(map[string]string),
	}
}

// HTTPStore implements RemoteStore against an HTTP key/value endpoint.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	limiter *rate.Limiter
}

// NewHTTPStore creates an HTTP-backed RemoteStore rooted at baseURL.
func NewHTTPStore(baseURL string, opts *HTTPStoreOptions) (*HTTPStore, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid HTTP store URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported HTTP store scheme '%s'", parsed.Scheme))
	}

	if opts == nil {
		opts = DefaultHTTPStoreOptions()
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &HTTPStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		headers: opts.Headers,
		limiter: limiter,
	}, nil
}

// Get implements RemoteStore. A 404 response maps to the canonical
// not-found error code.
func (s *HTTPStore) Get(ctx context.Context, key, label string) (Setting, error) {
	requestURL := fmt.Sprintf("%s/kv/%s", s.baseURL, url.PathEscape(key))
	if label != "" {
		requestURL += "?label=" + url.QueryEscape(label)
	}

	body, status, err := s.doGet(ctx, requestURL)
	if err != nil {
		return Setting{}, err
	}
	if status == http.StatusNotFound {
		return Setting{}, NewNotFoundError(key, label)
	}
	if status != http.StatusOK {
		return Setting{}, errors.New(ErrCodeStoreError,
			fmt.Sprintf("unexpected status %d fetching setting", status)).
			WithContext("key", key)
	}

	var setting Setting
	if err := json.Unmarshal(body, &setting); err != nil {
		return Setting{}, errors.Wrap(err, ErrCodeStoreError, "malformed setting response").
			WithContext("key", key)
	}
	return setting, nil
}

// List implements RemoteStore. The server's item order is preserved.
func (s *HTTPStore) List(ctx context.Context, keyFilter, labelFilter string) ([]Setting, error) {
	query := url.Values{}
	if keyFilter != "" {
		query.Set("key", keyFilter)
	}
	if labelFilter != "" {
		query.Set("label", labelFilter)
	}

	requestURL := s.baseURL + "/kv"
	if encoded := query.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	body, status, err := s.doGet(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.New(ErrCodeStoreError,
			fmt.Sprintf("unexpected status %d listing settings", status)).
			WithContext("key_filter", keyFilter)
	}

	var response struct {
		Items []Setting `json:"items"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, ErrCodeStoreError, "malformed list response")
	}
	return response.Items, nil
}

// doGet issues one GET request, honoring the rate limiter and extra headers.
func (s *HTTPStore) doGet(ctx context.Context, requestURL string) ([]byte, int, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, 0, errors.Wrap(err, ErrCodeStoreError, "rate limiter interrupted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, ErrCodeStoreError, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, ErrCodeStoreError, "request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, ErrCodeStoreError, "failed to read response body")
	}
	return body, resp.StatusCode, nil
}

// httpProvider serves one of the http/https URL schemes.
type httpProvider struct {
	scheme string
}

func (p *httpProvider) Name() string {
	return "Vigil HTTP Store Provider (" + p.scheme + ")"
}

func (p *httpProvider) Scheme() string {
	return p.scheme
}

func (p *httpProvider) Validate(storeURL string) error {
	parsed, err := url.Parse(storeURL)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "invalid HTTP store URL")
	}
	if parsed.Host == "" {
		return errors.New(ErrCodeInvalidConfig, "HTTP store URL requires a host")
	}
	return nil
}

func (p *httpProvider) Open(storeURL string) (RemoteStore, error) {
	return NewHTTPStore(storeURL, nil)
}

func init() {
	_ = RegisterStoreProvider(&httpProvider{scheme: "http"})
	_ = RegisterStoreProvider(&httpProvider{scheme: "https"})
}
