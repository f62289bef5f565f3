package credentials

import (
	"context"
	"testing"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMedium(t *testing.T) {
	ctx := context.Background()
	medium := NewMemoryMedium()

	_, err := medium.Get(ctx, models.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)

	require.NoError(t, medium.Put(ctx, models.Credential{Kind: models.AccessToken, Value: "A1"}))
	credential, err := medium.Get(ctx, models.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "A1", credential.Value)
	assert.False(t, credential.Persistent)

	removed, err := medium.Remove(ctx, models.AccessToken)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = medium.Remove(ctx, models.AccessToken)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Error(t, medium.Put(ctx, models.Credential{Kind: models.TokenKind("id_token"), Value: "x"}))
}
