package credentials

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	secretKey := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, secretKey)
	require.NoError(t, err)
	enc, err := NewGCMEncryptor(string(secretKey))
	require.NoError(t, err)
	val := "some-secret-value-123"
	valEnc, err := enc.Encrypt(val)
	require.NoError(t, err)
	assert.NotEqual(t, val, valEnc)
	valDec, err := enc.Decrypt(valEnc)
	require.NoError(t, err)
	assert.Equal(t, val, valDec)

	again, err := enc.Encrypt(val)
	require.NoError(t, err)
	assert.NotEqual(t, valEnc, again)
}

func TestDecryptGarbage(t *testing.T) {
	enc, err := NewGCMEncryptor("eBfR0WfHBTrRrVdLpsTYmWtPwJfQqOEq")
	require.NoError(t, err)
	_, err = enc.Decrypt("AAAA")
	assert.Error(t, err)
	_, err = enc.Decrypt("%%%")
	assert.Error(t, err)
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := NewGCMEncryptor("short")
	assert.Error(t, err)
}
