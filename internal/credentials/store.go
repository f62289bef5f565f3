package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
)

// ChangePublisher is told when a durable credential was cleared so other processes can react.
type ChangePublisher interface {
	Publish(ctx context.Context, kind models.TokenKind) error
}

// Store routes every credential to the durable or the volatile medium. A credential is never
// present in both media: writing to one removes the copy in the other.
type Store struct {
	durable   Medium
	volatile  Medium
	publisher ChangePublisher
}

// Get reads the durable medium first and falls back to the volatile one.
func (s *Store) Get(ctx context.Context, kind models.TokenKind) (models.Credential, error) {
	credential, err := s.durable.Get(ctx, kind)
	if err == nil {
		return credential, nil
	}
	if !errors.Is(err, apperrors.ErrTokenNotFound) {
		slog.Error(
			"CREDENTIAL STORE",
			"message", "reading the durable medium failed, trying the volatile one",
			"kind", kind,
			"medium", s.durable.Name(),
			"error", err,
		)
	}
	credential, err = s.volatile.Get(ctx, kind)
	if err != nil {
		return models.Credential{}, err
	}
	credential.Persistent = false
	return credential, nil
}

func (s *Store) Set(ctx context.Context, kind models.TokenKind, value string, persistent bool) error {
	err := kind.Validate()
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("cannot store an empty %s", kind)
	}
	target, other := s.volatile, s.durable
	if persistent {
		target, other = s.durable, s.volatile
	}
	err = target.Put(ctx, models.Credential{Kind: kind, Value: value, Persistent: persistent})
	if err != nil {
		return fmt.Errorf("cannot write %s to the %s medium: %w", kind, target.Name(), err)
	}
	_, err = other.Remove(ctx, kind)
	if err != nil {
		return fmt.Errorf("cannot remove %s from the %s medium: %w", kind, other.Name(), err)
	}
	return nil
}

// Clear removes the credential from both media. Removing a durable refresh token
// is published so that other processes end their sessions too.
func (s *Store) Clear(ctx context.Context, kind models.TokenKind) error {
	_, volatileErr := s.volatile.Remove(ctx, kind)
	removed, durableErr := s.durable.Remove(ctx, kind)
	if err := errors.Join(volatileErr, durableErr); err != nil {
		return fmt.Errorf("cannot clear %s: %w", kind, err)
	}
	if removed && kind == models.RefreshToken && s.publisher != nil {
		err := s.publisher.Publish(ctx, kind)
		if err != nil {
			slog.Error("CREDENTIAL STORE", "message", "publishing the teardown failed", "kind", kind, "error", err)
		}
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	var errs []error
	for _, kind := range models.TokenKinds {
		errs = append(errs, s.Clear(ctx, kind))
	}
	return errors.Join(errs...)
}

// ClearVolatile only drops the copies held by this process.
func (s *Store) ClearVolatile(ctx context.Context) error {
	var errs []error
	for _, kind := range models.TokenKinds {
		_, err := s.volatile.Remove(ctx, kind)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Session reads both credentials. A persistent access token without a refresh token is returned as is.
func (s *Store) Session(ctx context.Context) (models.Session, error) {
	output := models.Session{}
	for _, kind := range models.TokenKinds {
		credential, err := s.Get(ctx, kind)
		if err != nil {
			if errors.Is(err, apperrors.ErrTokenNotFound) {
				continue
			}
			return models.Session{}, err
		}
		switch kind {
		case models.AccessToken:
			output.AccessToken = &credential
		case models.RefreshToken:
			output.RefreshToken = &credential
		}
	}
	return output, nil
}

// AccessToken returns the current access token value, or an empty string when there is none.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	credential, err := s.Get(ctx, models.AccessToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			return "", nil
		}
		return "", err
	}
	return credential.Value, nil
}

type StoreOption func(*Store) error

func WithDurableMedium(medium Medium) StoreOption {
	return func(s *Store) error {
		s.durable = medium
		return nil
	}
}

func WithVolatileMedium(medium Medium) StoreOption {
	return func(s *Store) error {
		s.volatile = medium
		return nil
	}
}

func WithChangePublisher(publisher ChangePublisher) StoreOption {
	return func(s *Store) error {
		s.publisher = publisher
		return nil
	}
}

func NewStore(options ...StoreOption) (*Store, error) {
	s := Store{}
	for _, opt := range options {
		err := opt(&s)
		if err != nil {
			return &Store{}, err
		}
	}
	if s.durable == nil {
		return &Store{}, fmt.Errorf("durable medium is not initialized")
	}
	if s.volatile == nil {
		s.volatile = NewMemoryMedium()
	}
	return &s, nil
}
