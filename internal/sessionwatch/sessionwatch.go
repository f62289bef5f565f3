// Package sessionwatch keeps the operator session alive between operator actions.
package sessionwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
)

type SessionReader interface {
	Session(ctx context.Context) (models.Session, error)
}

// Verifier checks the session against the backend, refreshing the access token when it was rejected.
type Verifier interface {
	Verify(ctx context.Context) error
}

type Watcher struct {
	interval time.Duration
	sessions SessionReader
	verifier Verifier
}

// GetScheduler returns a scheduler that checks the session every interval, it is not started.
func (w *Watcher) GetScheduler() (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)

	checkTask := func(job gocron.Job) {
		err := w.Check(job.Context())
		if err != nil {
			slog.Error("SESSION WATCH", "message", "session check failed", "error", err)
		}
	}

	_, err := s.Every(w.interval).
		WaitForSchedule().
		SingletonMode().
		DoWithJobDetails(checkTask)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies the session when there is one. A session that cannot be recovered
// has already been ended by the verifier when this returns.
func (w *Watcher) Check(ctx context.Context) error {
	session, err := w.sessions.Session(ctx)
	if err != nil {
		return fmt.Errorf("cannot read the session: %w", err)
	}
	if !session.IsAuthenticated() {
		slog.Debug("SESSION WATCH", "message", "nobody is logged in, skipping")
		return nil
	}
	err = w.verifier.Verify(ctx)
	if err != nil {
		if apperrors.IsTerminal(err) {
			slog.Info("SESSION WATCH", "message", "the session has ended", "error", err)
			return nil
		}
		if errors.Is(err, apperrors.ErrConnection) {
			slog.Warn("SESSION WATCH", "message", "backend unreachable, will retry", "error", err)
			return nil
		}
		return err
	}
	slog.Debug("SESSION WATCH", "message", "session is alive")
	return nil
}

type WatcherOption func(*Watcher) error

func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) error {
		w.interval = interval
		return nil
	}
}

func WithSessionReader(sessions SessionReader) WatcherOption {
	return func(w *Watcher) error {
		w.sessions = sessions
		return nil
	}
}

func WithVerifier(verifier Verifier) WatcherOption {
	return func(w *Watcher) error {
		w.verifier = verifier
		return nil
	}
}

func NewWatcher(options ...WatcherOption) (*Watcher, error) {
	w := Watcher{interval: 5 * time.Minute}
	for _, opt := range options {
		err := opt(&w)
		if err != nil {
			return &Watcher{}, err
		}
	}
	if w.interval <= 0 {
		return &Watcher{}, fmt.Errorf("invalid value for the check interval (%s)", w.interval)
	}
	if w.sessions == nil {
		return &Watcher{}, fmt.Errorf("session reader not initialized")
	}
	if w.verifier == nil {
		return &Watcher{}, fmt.Errorf("verifier not initialized")
	}
	return &w, nil
}
