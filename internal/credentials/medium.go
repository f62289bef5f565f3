// Package credentials keeps the access and refresh tokens of the operator session.
//
// Each token lives in exactly one of two media: the durable medium (redis, shared between
// console processes and surviving restarts) or the volatile medium (process memory).
package credentials

import (
	"context"

	"github.com/nwl-centralize/backoffice/internal/models"
)

// Medium is one place a credential can be written to.
type Medium interface {
	// Name is used in logs
	Name() string
	// Get returns apperrors.ErrTokenNotFound when the slot is empty
	Get(ctx context.Context, kind models.TokenKind) (models.Credential, error)
	Put(ctx context.Context, credential models.Credential) error
	// Remove reports whether something was actually removed
	Remove(ctx context.Context, kind models.TokenKind) (bool, error)
}

type Encryptor interface {
	Encrypt(value string) (encrypted string, err error)
	Decrypt(value string) (decrypted string, err error)
}
