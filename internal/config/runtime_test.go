package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fallbackAPIs(t *testing.T, runtimeURL string) APIsConfig {
	userURL, err := url.Parse("http://localhost:3000")
	require.NoError(t, err)
	systemURL, err := url.Parse("http://localhost:3001")
	require.NoError(t, err)
	return APIsConfig{UserAPIURL: userURL, SystemAPIURL: systemURL, RuntimeConfigURL: runtimeURL}
}

func TestRuntimeResolverLoadsOnce(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"APP_USER_API_URL":"https://users.example.org","APP_SYSTEM_API_URL":"https://system.example.org"}`))
	}))
	defer ts.Close()

	resolver := NewRuntimeResolver(fallbackAPIs(t, ts.URL+"/runtime-config.json"), ts.Client())
	first := resolver.APIs(context.Background())
	second := resolver.APIs(context.Background())

	assert.Equal(t, "https://users.example.org", first.UserAPIURL.String())
	assert.Equal(t, "https://system.example.org", first.SystemAPIURL.String())
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRuntimeResolverFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer ts.Close()

	resolver := NewRuntimeResolver(fallbackAPIs(t, ts.URL+"/runtime-config.json"), ts.Client())
	apis := resolver.APIs(context.Background())

	assert.Equal(t, "http://localhost:3000", apis.UserAPIURL.String())
	assert.Equal(t, "http://localhost:3001", apis.SystemAPIURL.String())
}

func TestRuntimeResolverPartialDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"APP_SYSTEM_API_URL":"https://system.example.org","APP_USER_API_URL":"not a url"}`))
	}))
	defer ts.Close()

	resolver := NewRuntimeResolver(fallbackAPIs(t, ts.URL), ts.Client())
	apis := resolver.APIs(context.Background())

	assert.Equal(t, "http://localhost:3000", apis.UserAPIURL.String())
	assert.Equal(t, "https://system.example.org", apis.SystemAPIURL.String())
}

func TestRuntimeResolverWithoutURL(t *testing.T) {
	resolver := NewRuntimeResolver(fallbackAPIs(t, ""), nil)
	apis := resolver.APIs(context.Background())
	assert.Equal(t, "http://localhost:3000", apis.UserAPIURL.String())
}
