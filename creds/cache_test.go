package creds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMomentoCache_GetHit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/cache/creds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "user-42" {
			t.Errorf("unexpected key %s", r.URL.Query().Get("key"))
		}
		if r.Header.Get("Authorization") != "api-key" {
			t.Errorf("unexpected authorization %s", r.Header.Get("Authorization"))
		}

		_ = json.NewEncoder(w).Encode(Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret", SessionToken: "session"})
	}))
	defer server.Close()

	cache := NewMomentoCache(server.URL, "creds", "api-key", nil)

	creds, hit, err := cache.Get(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !hit {
		t.Fatal("expected a hit")
	}
	if creds.AccessKeyID != "AKIA" {
		t.Errorf("unexpected access key %s", creds.AccessKeyID)
	}
}

func TestMomentoCache_GetMissOn404(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := NewMomentoCache(server.URL, "creds", "api-key", nil)

	creds, hit, err := cache.Get(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("expected a 404 to be a miss, not an error, got %v", err)
	}
	if hit || creds != nil {
		t.Error("expected a miss")
	}
}

func TestMomentoCache_GetServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewMomentoCache(server.URL, "creds", "api-key", nil)

	_, _, err := cache.Get(context.Background(), "user-42")

	if err == nil {
		t.Error("expected error for server failure, got nil")
	}
}

func TestMomentoCache_Set(t *testing.T) {
	t.Parallel()

	var capturedTTL string
	var capturedBody Credentials

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		capturedTTL = r.URL.Query().Get("ttl_seconds")
		_ = json.NewDecoder(r.Body).Decode(&capturedBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cache := NewMomentoCache(server.URL, "creds", "api-key", nil)

	err := cache.Set(context.Background(), "user-42", &Credentials{AccessKeyID: "AKIA"}, time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if capturedTTL != "3600" {
		t.Errorf("expected ttl_seconds 3600, got %s", capturedTTL)
	}
	if capturedBody.AccessKeyID != "AKIA" {
		t.Errorf("unexpected stored access key %s", capturedBody.AccessKeyID)
	}
}

func TestMomentoCache_SetServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cache := NewMomentoCache(server.URL, "creds", "api-key", nil)

	err := cache.Set(context.Background(), "user-42", &Credentials{}, time.Hour)

	if err == nil {
		t.Error("expected error for rejected write, got nil")
	}
}

func TestNopCache(t *testing.T) {
	t.Parallel()

	var cache NopCache

	if err := cache.Set(context.Background(), "k", &Credentials{}, time.Hour); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	_, hit, err := cache.Get(context.Background(), "k")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if hit {
		t.Error("expected NopCache to always miss")
	}
}
