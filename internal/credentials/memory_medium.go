package credentials

import (
	"context"
	"sync"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
)

// MemoryMedium is the volatile medium, its content is gone when the process ends.
type MemoryMedium struct {
	lock  sync.RWMutex
	slots map[models.TokenKind]string
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{slots: map[models.TokenKind]string{}}
}

func (m *MemoryMedium) Name() string {
	return "memory"
}

func (m *MemoryMedium) Get(_ context.Context, kind models.TokenKind) (models.Credential, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	value, found := m.slots[kind]
	if !found {
		return models.Credential{}, apperrors.ErrTokenNotFound
	}
	return models.Credential{Kind: kind, Value: value}, nil
}

func (m *MemoryMedium) Put(_ context.Context, credential models.Credential) error {
	err := credential.Kind.Validate()
	if err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.slots[credential.Kind] = credential.Value
	return nil
}

func (m *MemoryMedium) Remove(_ context.Context, kind models.TokenKind) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, found := m.slots[kind]
	delete(m.slots, kind)
	return found, nil
}
