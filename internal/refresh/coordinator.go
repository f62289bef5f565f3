// Package refresh makes sure that all the requests of one client that were rejected with
// an expired access token share a single token refresh call.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
)

const defaultTimeout time.Duration = 30 * time.Second

// Refresher exchanges a refresh token for a new token pair. The refresh token
// in the returned pair is empty when the server does not rotate it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

type CredentialStore interface {
	Get(ctx context.Context, kind models.TokenKind) (models.Credential, error)
	Set(ctx context.Context, kind models.TokenKind, value string, persistent bool) error
}

// SessionTerminator ends the session after a failure that cannot be recovered by refreshing.
type SessionTerminator interface {
	Terminate(ctx context.Context, cause error)
}

type result struct {
	accessToken string
	err         error
}

type waiter struct {
	// buffered so that resolving never blocks on a caller that stopped waiting
	result chan result
}

type cycle struct {
	id        string
	startedAt time.Time
	waiters   []*waiter
}

// Coordinator is either idle or running exactly one refresh cycle.
type Coordinator struct {
	backend    string
	store      CredentialStore
	refresher  Refresher
	terminator SessionTerminator
	timeout    time.Duration
	metrics    *Metrics

	lock    sync.Mutex
	current *cycle
}

// Refresh joins the running refresh cycle or starts a new one, and returns the new access token.
// When the caller's context ends first the caller stops waiting but the cycle carries on for the others.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	w := &waiter{result: make(chan result, 1)}
	if c.join(w) {
		return c.wait(ctx, w)
	}

	refreshToken, err := c.store.Get(ctx, models.RefreshToken)
	if err != nil && !errors.Is(err, apperrors.ErrTokenNotFound) {
		return "", fmt.Errorf("cannot read the refresh token: %w", err)
	}
	missing := err != nil || refreshToken.Value == ""

	c.lock.Lock()
	if c.current != nil {
		c.current.waiters = append(c.current.waiters, w)
		c.lock.Unlock()
		return c.wait(ctx, w)
	}
	if missing {
		c.lock.Unlock()
		slog.Info("TOKEN REFRESH", "message", "no refresh token available, ending the session", "backend", c.backend)
		c.metrics.observeMissingToken(c.backend)
		c.terminator.Terminate(ctx, apperrors.ErrNoRefreshToken)
		return "", apperrors.ErrNoRefreshToken
	}
	id, err := models.ULIDGenerator{}.ID()
	if err != nil {
		c.lock.Unlock()
		return "", err
	}
	current := &cycle{id: id, startedAt: time.Now(), waiters: []*waiter{w}}
	c.current = current
	c.lock.Unlock()

	slog.Debug("TOKEN REFRESH", "message", "starting refresh cycle", "backend", c.backend, "cycle", id)
	go c.run(current, refreshToken)
	return c.wait(ctx, w)
}

// Refreshing reports whether a refresh cycle is in flight.
func (c *Coordinator) Refreshing() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.current != nil
}

// Waiting returns the number of requests waiting on the refresh cycle in flight.
func (c *Coordinator) Waiting() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.current == nil {
		return 0
	}
	return len(c.current.waiters)
}

func (c *Coordinator) join(w *waiter) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.current == nil {
		return false
	}
	c.current.waiters = append(c.current.waiters, w)
	return true
}

func (c *Coordinator) wait(ctx context.Context, w *waiter) (string, error) {
	select {
	case res := <-w.result:
		return res.accessToken, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) run(current *cycle, refreshToken models.Credential) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	accessToken, err := c.exchange(ctx, refreshToken)
	if err != nil {
		outcome := outcomeFailure
		if errors.Is(err, apperrors.ErrRefreshTimeout) {
			outcome = outcomeTimeout
		}
		slog.Error(
			"TOKEN REFRESH",
			"message", "refresh failed, ending the session",
			"backend", c.backend,
			"cycle", current.id,
			"error", err,
		)
		c.terminator.Terminate(context.Background(), err)
		c.finish(current, outcome, result{err: fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err)})
		return
	}
	slog.Info("TOKEN REFRESH", "message", "access token refreshed", "backend", c.backend, "cycle", current.id)
	c.finish(current, outcomeSuccess, result{accessToken: accessToken})
}

// exchange calls the refresher and commits the new tokens. The new credentials take the
// persistence of the refresh token they were obtained with.
func (c *Coordinator) exchange(ctx context.Context, refreshToken models.Credential) (string, error) {
	type outcome struct {
		pair models.TokenPair
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		pair, err := c.refresher.Refresh(ctx, refreshToken.Value)
		done <- outcome{pair: pair, err: err}
	}()

	var pair models.TokenPair
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w after %s", apperrors.ErrRefreshTimeout, c.timeout)
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w after %s: %w", apperrors.ErrRefreshTimeout, c.timeout, res.err)
			}
			return "", res.err
		}
		pair = res.pair
	}
	if pair.AccessToken == "" {
		return "", apperrors.ErrInvalidTokenResponse
	}
	err := c.store.Set(ctx, models.AccessToken, pair.AccessToken, refreshToken.Persistent)
	if err != nil {
		return "", fmt.Errorf("cannot save the refreshed access token: %w", err)
	}
	if pair.RefreshToken != "" && pair.RefreshToken != refreshToken.Value {
		err = c.store.Set(ctx, models.RefreshToken, pair.RefreshToken, refreshToken.Persistent)
		if err != nil {
			return "", fmt.Errorf("cannot save the rotated refresh token: %w", err)
		}
	}
	return pair.AccessToken, nil
}

// finish frees the slot and only then resolves the waiters, in the order they arrived.
func (c *Coordinator) finish(current *cycle, outcome string, res result) {
	c.lock.Lock()
	waiters := current.waiters
	current.waiters = nil
	c.current = nil
	c.lock.Unlock()

	c.metrics.observeCycle(c.backend, outcome, len(waiters), time.Since(current.startedAt))
	for _, w := range waiters {
		w.result <- res
	}
}

type CoordinatorOption func(*Coordinator) error

func WithBackend(name string) CoordinatorOption {
	return func(c *Coordinator) error {
		c.backend = name
		return nil
	}
}

func WithStore(store CredentialStore) CoordinatorOption {
	return func(c *Coordinator) error {
		c.store = store
		return nil
	}
}

func WithRefresher(refresher Refresher) CoordinatorOption {
	return func(c *Coordinator) error {
		c.refresher = refresher
		return nil
	}
}

func WithTerminator(terminator SessionTerminator) CoordinatorOption {
	return func(c *Coordinator) error {
		c.terminator = terminator
		return nil
	}
}

func WithTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid refresh timeout (%s)", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

func WithMetrics(metrics *Metrics) CoordinatorOption {
	return func(c *Coordinator) error {
		c.metrics = metrics
		return nil
	}
}

func NewCoordinator(options ...CoordinatorOption) (*Coordinator, error) {
	c := Coordinator{backend: "default", timeout: defaultTimeout}
	for _, opt := range options {
		err := opt(&c)
		if err != nil {
			return &Coordinator{}, err
		}
	}
	if c.store == nil {
		return &Coordinator{}, fmt.Errorf("credential store not initialized")
	}
	if c.refresher == nil {
		return &Coordinator{}, fmt.Errorf("refresher not initialized")
	}
	if c.terminator == nil {
		return &Coordinator{}, fmt.Errorf("session terminator not initialized")
	}
	return &c, nil
}
