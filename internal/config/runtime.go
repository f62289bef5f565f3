package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
)

// RuntimeConfig is the document published next to the UI to point it at the backends
type RuntimeConfig struct {
	UserAPIURL   string `json:"APP_USER_API_URL"`
	SystemAPIURL string `json:"APP_SYSTEM_API_URL"`
	Environment  string `json:"ENVIRONMENT"`
}

// RuntimeResolver resolves the backend base URLs once per process. The runtime document wins
// over the configured URLs, and the configured URLs are the fallback when it cannot be loaded.
type RuntimeResolver struct {
	fallback   APIsConfig
	httpClient *http.Client

	once     sync.Once
	resolved APIsConfig
}

func NewRuntimeResolver(fallback APIsConfig, httpClient *http.Client) *RuntimeResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RuntimeResolver{fallback: fallback, httpClient: httpClient}
}

// APIs returns the resolved URLs, the first call loads the runtime document.
func (r *RuntimeResolver) APIs(ctx context.Context) APIsConfig {
	r.once.Do(func() {
		r.resolved = r.resolve(ctx)
	})
	return r.resolved
}

func (r *RuntimeResolver) resolve(ctx context.Context) APIsConfig {
	output := r.fallback
	if r.fallback.RuntimeConfigURL == "" {
		return output
	}
	runtimeConfig, err := r.load(ctx)
	if err != nil {
		slog.Error(
			"RUNTIME CONFIG",
			"message", "loading the runtime config failed, using the configured urls",
			"url", r.fallback.RuntimeConfigURL,
			"error", err,
		)
		return output
	}
	if u := parseOptionalURL(runtimeConfig.UserAPIURL); u != nil {
		output.UserAPIURL = u
	}
	if u := parseOptionalURL(runtimeConfig.SystemAPIURL); u != nil {
		output.SystemAPIURL = u
	}
	slog.Info(
		"RUNTIME CONFIG",
		"message", "resolved backend urls",
		"userApiUrl", output.UserAPIURL.String(),
		"systemApiUrl", output.SystemAPIURL.String(),
		"environment", runtimeConfig.Environment,
	)
	return output
}

func (r *RuntimeResolver) load(ctx context.Context) (RuntimeConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.fallback.RuntimeConfigURL, nil)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("error fetching runtime config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RuntimeConfig{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("error reading response body: %w", err)
	}
	var output RuntimeConfig
	if err := json.Unmarshal(body, &output); err != nil {
		return RuntimeConfig{}, fmt.Errorf("error parsing JSON response: %w", err)
	}
	return output, nil
}

func parseOptionalURL(value string) *url.URL {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		slog.Warn("RUNTIME CONFIG", "message", "ignoring invalid url", "url", value)
		return nil
	}
	return u
}
