package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
	"github.com/redis/go-redis/v9"
)

type teardownEvent struct {
	Origin string           `json:"origin"`
	Slot   models.TokenKind `json:"slot"`
}

// TeardownSignal propagates the removal of a durable credential to every console process
// sharing the same profile, over a redis channel named after the credential slot.
type TeardownSignal struct {
	rdb       redis.UniversalClient
	namespace string
	origin    string
}

func (s *TeardownSignal) Channel(kind models.TokenKind) string {
	return s.namespace + ":" + string(kind) + ":cleared"
}

// Origin identifies this process in the published events.
func (s *TeardownSignal) Origin() string {
	return s.origin
}

func (s *TeardownSignal) Publish(ctx context.Context, kind models.TokenKind) error {
	payload, err := json.Marshal(teardownEvent{Origin: s.origin, Slot: kind})
	if err != nil {
		return err
	}
	slog.Debug("TEARDOWN SIGNAL", "message", "publishing teardown", "channel", s.Channel(kind), "origin", s.origin)
	return s.rdb.Publish(ctx, s.Channel(kind), payload).Err()
}

// Subscribe starts listening for refresh token removals. The subscription is active when it returns.
func (s *TeardownSignal) Subscribe(ctx context.Context) (*TeardownListener, error) {
	pubsub := s.rdb.Subscribe(ctx, s.Channel(models.RefreshToken))
	_, err := pubsub.Receive(ctx)
	if err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("cannot subscribe to %s: %w", s.Channel(models.RefreshToken), err)
	}
	return &TeardownListener{pubsub: pubsub, origin: s.origin}, nil
}

type TeardownListener struct {
	pubsub *redis.PubSub
	origin string
}

// Run blocks until ctx is done or the subscription is closed. On every teardown published by another
// process it re-checks the store and, when no refresh token is left, drops the volatile copies
// and calls onTeardown.
func (l *TeardownListener) Run(ctx context.Context, store *Store, onTeardown func(context.Context)) {
	messages := l.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			l.handle(ctx, msg, store, onTeardown)
		}
	}
}

func (l *TeardownListener) handle(ctx context.Context, msg *redis.Message, store *Store, onTeardown func(context.Context)) {
	var event teardownEvent
	err := json.Unmarshal([]byte(msg.Payload), &event)
	if err != nil {
		slog.Warn("TEARDOWN SIGNAL", "message", "ignoring malformed event", "channel", msg.Channel, "error", err)
		return
	}
	if event.Origin == l.origin {
		return
	}
	_, err = store.Get(ctx, models.RefreshToken)
	if err == nil {
		slog.Info("TEARDOWN SIGNAL", "message", "teardown received but a refresh token is still present", "from", event.Origin)
		return
	}
	if !errors.Is(err, apperrors.ErrTokenNotFound) {
		slog.Error("TEARDOWN SIGNAL", "message", "cannot re-check the session", "error", err)
		return
	}
	slog.Info("TEARDOWN SIGNAL", "message", "session ended in another process", "from", event.Origin)
	err = store.ClearVolatile(ctx)
	if err != nil {
		slog.Error("TEARDOWN SIGNAL", "message", "clearing the volatile credentials failed", "error", err)
	}
	onTeardown(ctx)
}

func (l *TeardownListener) Close() error {
	return l.pubsub.Close()
}

type TeardownSignalOption func(*TeardownSignal) error

func WithPubSubClient(rdb redis.UniversalClient) TeardownSignalOption {
	return func(s *TeardownSignal) error {
		s.rdb = rdb
		return nil
	}
}

func WithNamespace(namespace string) TeardownSignalOption {
	return func(s *TeardownSignal) error {
		s.namespace = namespace
		return nil
	}
}

func NewTeardownSignal(options ...TeardownSignalOption) (*TeardownSignal, error) {
	origin, err := models.ULIDGenerator{}.ID()
	if err != nil {
		return &TeardownSignal{}, err
	}
	s := TeardownSignal{namespace: KeyNamespace("backoffice", "default"), origin: origin}
	for _, opt := range options {
		err := opt(&s)
		if err != nil {
			return &TeardownSignal{}, err
		}
	}
	if s.rdb == nil {
		return &TeardownSignal{}, fmt.Errorf("redis client is not initialized")
	}
	return &s, nil
}
