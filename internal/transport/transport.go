// Package transport sends JSON requests to one backend and turns every non-2xx answer into an HTTPFailure.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	LoginPath   string = "/auth/login"
	RefreshPath string = "/auth/refresh-token"
	LogoutPath  string = "/auth/logout"
	VerifyPath  string = "/auth/verify"
)

// TokenSource supplies the current access token, an empty string when there is none.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Request struct {
	Method string
	Path   string
	// Body is sent as is when it is a json.RawMessage, otherwise it is encoded as JSON
	Body   any
	Header http.Header
	// Token overrides the token source, it is used to replay a request with a freshly refreshed token
	Token    string
	SkipAuth bool
}

type Transport struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
}

func (t *Transport) BaseURL() *url.URL {
	u := *t.baseURL
	return &u
}

func (t *Transport) Send(ctx context.Context, request Request) (json.RawMessage, error) {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	path := NormalizePath(request.Path)
	body, err := encodeBody(request.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot encode the body of %s %s: %w", method, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for name, values := range request.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	token, err := t.bearer(ctx, path, request)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		slog.Debug(
			"TRANSPORT",
			"message", "request failed before a response was received",
			"method", method,
			"path", path,
			"requestID", requestID,
			"error", err,
		)
		return nil, newConnectionFailure(method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newConnectionFailure(method, path, err)
	}
	slog.Debug(
		"TRANSPORT",
		"message", "request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"requestID", requestID,
		"authorized", token != "",
		"duration", time.Since(start),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusFailure(method, path, resp.StatusCode, respBody)
	}
	respBody = bytes.TrimSpace(respBody)
	if len(respBody) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("the response of %s %s is not valid JSON", method, path)
	}
	return json.RawMessage(respBody), nil
}

func (t *Transport) bearer(ctx context.Context, path string, request Request) (string, error) {
	if request.SkipAuth || IsCredentialEndpoint(path) {
		return "", nil
	}
	if request.Token != "" {
		return request.Token, nil
	}
	if t.tokens == nil {
		return "", nil
	}
	token, err := t.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot read the access token: %w", err)
	}
	return token, nil
}

func (t *Transport) endpoint(path string) string {
	return strings.TrimRight(t.baseURL.String(), "/") + path
}

// NormalizePath makes every path absolute so "management/users" and "/management/users" are the same endpoint.
func NormalizePath(path string) string {
	return "/" + strings.TrimLeft(path, "/")
}

// IsCredentialEndpoint reports whether path exchanges credentials, such requests never carry a bearer token.
func IsCredentialEndpoint(path string) bool {
	return IsLoginEndpoint(path) || IsRefreshEndpoint(path)
}

func IsLoginEndpoint(path string) bool {
	return endpointPath(path) == LoginPath
}

func IsRefreshEndpoint(path string) bool {
	return endpointPath(path) == RefreshPath
}

// endpointPath drops the query, the fragment and trailing slashes from a normalized path.
func endpointPath(path string) string {
	path = NormalizePath(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.TrimRight(path, "/")
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(encoded), nil
	}
}

type TransportOption func(*Transport) error

func WithBaseURL(baseURL *url.URL) TransportOption {
	return func(t *Transport) error {
		if baseURL == nil {
			return fmt.Errorf("the base url cannot be nil")
		}
		if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
			return fmt.Errorf("unsupported scheme %q in base url %s", baseURL.Scheme, baseURL.String())
		}
		u := *baseURL
		t.baseURL = &u
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) TransportOption {
	return func(t *Transport) error {
		t.httpClient = httpClient
		return nil
	}
}

func WithTimeout(timeout time.Duration) TransportOption {
	return func(t *Transport) error {
		if timeout < 0 {
			return fmt.Errorf("the timeout cannot be negative")
		}
		t.httpClient = &http.Client{Timeout: timeout}
		return nil
	}
}

func WithTokenSource(tokens TokenSource) TransportOption {
	return func(t *Transport) error {
		t.tokens = tokens
		return nil
	}
}

func NewTransport(options ...TransportOption) (*Transport, error) {
	t := Transport{}
	for _, opt := range options {
		err := opt(&t)
		if err != nil {
			return &Transport{}, err
		}
	}
	if t.baseURL == nil {
		return &Transport{}, fmt.Errorf("the base url is not set")
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &t, nil
}
