// Package client sends authorized requests to a backend and recovers from an expired access token
// by refreshing it once and replaying the request.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
	"github.com/nwl-centralize/backoffice/internal/refresh"
	"github.com/nwl-centralize/backoffice/internal/transport"
)

// Sender is the transport to one backend.
type Sender interface {
	Send(ctx context.Context, request transport.Request) (json.RawMessage, error)
}

type SessionStore interface {
	refresh.CredentialStore
	Clear(ctx context.Context, kind models.TokenKind) error
	ClearAll(ctx context.Context) error
	Session(ctx context.Context) (models.Session, error)
}

type Client struct {
	name           string
	sender         Sender
	refreshSender  Sender
	store          SessionStore
	boundary       LoginBoundary
	notifier       Notifier
	notifyDebounce time.Duration
	refreshTimeout time.Duration
	requiredRole   string
	metrics        *refresh.Metrics
	coordinator    *refresh.Coordinator
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, body)
}

// do sends the request, and on a 401 waits for the shared refresh and replays the request
// once with the new token. A 401 on the replay ends the session.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	request := transport.Request{Method: method, Path: path, Body: body}
	res, err := c.sender.Send(ctx, request)
	if err == nil {
		return res, nil
	}
	if !transport.IsUnauthorized(err) {
		c.notify(ctx, err)
		return nil, err
	}
	switch {
	case transport.IsRefreshEndpoint(path):
		c.Terminate(ctx, err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err)
	case transport.IsLoginEndpoint(path):
		c.notify(ctx, err)
		return nil, err
	}

	slog.Debug("AUTHORIZED CLIENT", "message", "access token rejected, waiting for a refresh", "client", c.name, "method", method, "path", path)
	token, err := c.coordinator.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	request.Token = token
	res, err = c.sender.Send(ctx, request)
	if err == nil {
		return res, nil
	}
	if transport.IsUnauthorized(err) {
		slog.Warn("AUTHORIZED CLIENT", "message", "replay rejected with a fresh token", "client", c.name, "method", method, "path", path)
		c.Terminate(ctx, err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err)
	}
	c.notify(ctx, err)
	return nil, err
}

// notify only reports failures the server answered with a status. Connection failures are
// returned to the caller without a notification.
func (c *Client) notify(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) || apperrors.IsTerminal(err) || errors.Is(err, apperrors.ErrConnection) {
		return
	}
	message := err.Error()
	var failure *transport.HTTPFailure
	if errors.As(err, &failure) {
		message = failure.Message
	}
	c.notifier.Notify(ctx, message)
}

// Terminate clears every credential, which also ends the session of the other console processes,
// and trips the login boundary.
func (c *Client) Terminate(ctx context.Context, cause error) {
	sessionTerminator{name: c.name, store: c.store, boundary: c.boundary}.Terminate(ctx, cause)
}

type sessionTerminator struct {
	name     string
	store    SessionStore
	boundary LoginBoundary
}

func (t sessionTerminator) Terminate(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	slog.Warn("AUTHORIZED CLIENT", "message", "ending the session", "client", t.name, "cause", cause)
	err := t.store.ClearAll(ctx)
	if err != nil {
		slog.Error("AUTHORIZED CLIENT", "message", "clearing the credentials failed", "client", t.name, "error", err)
	}
	t.boundary.RedirectToLogin(ctx, cause)
}

// NewRefreshCoordinator builds a coordinator that refreshes the session held in store through sender.
// Clients reading the same refresh token from the same store have to share one, see WithCoordinator.
func NewRefreshCoordinator(
	sender Sender,
	store SessionStore,
	boundary LoginBoundary,
	options ...refresh.CoordinatorOption,
) (*refresh.Coordinator, error) {
	if sender == nil {
		return &refresh.Coordinator{}, fmt.Errorf("refresh transport not initialized")
	}
	if store == nil {
		return &refresh.Coordinator{}, fmt.Errorf("credential store not initialized")
	}
	if boundary == nil {
		boundary = LogBoundary{}
	}
	return refresh.NewCoordinator(append([]refresh.CoordinatorOption{
		refresh.WithStore(store),
		refresh.WithRefresher(tokenRefresher{sender: sender}),
		refresh.WithTerminator(sessionTerminator{name: "refresh", store: store, boundary: boundary}),
	}, options...)...)
}

// Refreshing reports whether this client is waiting on a token refresh.
func (c *Client) Refreshing() bool {
	return c.coordinator.Refreshing()
}

type tokenRefresher struct {
	sender Sender
}

func (r tokenRefresher) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	res, err := r.sender.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   transport.RefreshPath,
		Body:   map[string]string{"refresh_token": refreshToken},
	})
	if err != nil {
		return models.TokenPair{}, err
	}
	var pair models.TokenPair
	err = json.Unmarshal(res, &pair)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidTokenResponse, err)
	}
	return pair, nil
}

type ClientOption func(*Client) error

func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.name = name
		return nil
	}
}

func WithSender(sender Sender) ClientOption {
	return func(c *Client) error {
		c.sender = sender
		return nil
	}
}

// WithRefreshSender makes the client refresh its tokens against another backend.
func WithRefreshSender(sender Sender) ClientOption {
	return func(c *Client) error {
		c.refreshSender = sender
		return nil
	}
}

func WithStore(store SessionStore) ClientOption {
	return func(c *Client) error {
		c.store = store
		return nil
	}
}

func WithLoginBoundary(boundary LoginBoundary) ClientOption {
	return func(c *Client) error {
		c.boundary = boundary
		return nil
	}
}

// WithNotifier sets the failure sink. A *DebouncedNotifier is used as is so that clients
// sharing it also share its debounce window.
func WithNotifier(notifier Notifier) ClientOption {
	return func(c *Client) error {
		c.notifier = notifier
		return nil
	}
}

func WithNotifyDebounce(window time.Duration) ClientOption {
	return func(c *Client) error {
		if window < 0 {
			return fmt.Errorf("invalid notification debounce (%s)", window)
		}
		c.notifyDebounce = window
		return nil
	}
}

func WithRefreshTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		c.refreshTimeout = timeout
		return nil
	}
}

// WithRequiredRole rejects logins whose access token does not carry the role.
func WithRequiredRole(role string) ClientOption {
	return func(c *Client) error {
		c.requiredRole = role
		return nil
	}
}

func WithMetrics(metrics *refresh.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = metrics
		return nil
	}
}

// WithCoordinator makes the client wait on a coordinator shared with other clients instead of
// building its own. WithRefreshSender, WithRefreshTimeout and WithMetrics are then ignored.
func WithCoordinator(coordinator *refresh.Coordinator) ClientOption {
	return func(c *Client) error {
		c.coordinator = coordinator
		return nil
	}
}

func NewClient(options ...ClientOption) (*Client, error) {
	c := Client{
		name:           "user",
		boundary:       LogBoundary{},
		notifier:       LogNotifier{},
		notifyDebounce: 1500 * time.Millisecond,
		refreshTimeout: 30 * time.Second,
	}
	for _, opt := range options {
		err := opt(&c)
		if err != nil {
			return &Client{}, err
		}
	}
	if c.sender == nil {
		return &Client{}, fmt.Errorf("transport not initialized")
	}
	if c.store == nil {
		return &Client{}, fmt.Errorf("credential store not initialized")
	}
	if c.refreshSender == nil {
		c.refreshSender = c.sender
	}
	if _, ok := c.notifier.(*DebouncedNotifier); !ok {
		c.notifier = NewDebouncedNotifier(c.notifier, c.notifyDebounce)
	}
	if c.coordinator != nil {
		return &c, nil
	}
	coordinator, err := refresh.NewCoordinator(
		refresh.WithBackend(c.name),
		refresh.WithStore(c.store),
		refresh.WithRefresher(tokenRefresher{sender: c.refreshSender}),
		refresh.WithTerminator(&c),
		refresh.WithTimeout(c.refreshTimeout),
		refresh.WithMetrics(c.metrics),
	)
	if err != nil {
		return &Client{}, err
	}
	c.coordinator = coordinator
	return &c, nil
}
