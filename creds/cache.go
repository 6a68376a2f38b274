package creds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Cache is the credential memoization surface. Implementations own TTL
// enforcement; the vendor never checks expiry itself.
type Cache interface {
	// Get returns the cached credentials for key, and whether they were
	// present.
	Get(ctx context.Context, key string) (*Credentials, bool, error)

	// Set stores credentials under key for the given TTL.
	Set(ctx context.Context, key string, credentials *Credentials, ttl time.Duration) error
}

// NopCache is a Cache that never holds anything. It is used when no cache
// endpoint is configured; every vend then runs the full assumption chain.
type NopCache struct{}

// Get implements [Cache]; it always misses.
func (NopCache) Get(context.Context, string) (*Credentials, bool, error) {
	return nil, false, nil
}

// Set implements [Cache]; it discards the credentials.
func (NopCache) Set(context.Context, string, *Credentials, time.Duration) error {
	return nil
}

// MomentoCache stores credentials in a Momento cache over its HTTP API.
// The service evicts entries when their TTL elapses.
type MomentoCache struct {
	baseURL   string
	cacheName string
	apiKey    string
	client    *http.Client
}

// NewMomentoCache creates a cache client for the given API endpoint and
// cache name. httpClient may be nil, in which case a client with a 10s
// timeout is used.
func NewMomentoCache(baseURL, cacheName, apiKey string, httpClient *http.Client) *MomentoCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &MomentoCache{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		cacheName: cacheName,
		apiKey:    apiKey,
		client:    httpClient,
	}
}

// Get implements [Cache]. A 404 from the cache service is a miss, not an
// error.
func (m *MomentoCache) Get(ctx context.Context, key string) (*Credentials, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.itemURL(key, 0), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build cache get request: %w", err)
	}

	req.Header.Set("Authorization", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("cache get returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache response: %w", err)
	}

	var credentials Credentials
	if err := json.Unmarshal(body, &credentials); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached credentials: %w", err)
	}

	return &credentials, true, nil
}

// Set implements [Cache].
func (m *MomentoCache) Set(ctx context.Context, key string, credentials *Credentials, ttl time.Duration) error {
	body, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, m.itemURL(key, ttl), strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to build cache set request: %w", err)
	}

	req.Header.Set("Authorization", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cache set returned status %d", resp.StatusCode)
	}

	return nil
}

func (m *MomentoCache) itemURL(key string, ttl time.Duration) string {
	query := url.Values{"key": {key}}

	if ttl > 0 {
		query.Set("ttl_seconds", strconv.Itoa(int(ttl.Seconds())))
	}

	return m.baseURL + "/cache/" + url.PathEscape(m.cacheName) + "?" + query.Encode()
}
