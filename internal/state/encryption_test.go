package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-io/terrane/internal/ir"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "correct-horse-battery-staple")

	plaintext := []byte(`{"net":{"type":"network"}}`)
	encrypted, err := EncryptState(plaintext)
	require.NoError(t, err)

	assert.True(t, IsEncrypted(encrypted))
	assert.NotContains(t, string(encrypted), "network")

	decrypted, err := DecryptState(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptState_NoKeyPassesThrough(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")

	content := []byte("plain state")
	out, err := EncryptState(content)
	require.NoError(t, err)
	assert.Equal(t, content, out)
	assert.False(t, IsEncrypted(out))

	// Unencrypted content decrypts to itself.
	out, err = DecryptState(content)
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestDecryptState_MissingKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "some-key")
	encrypted, err := EncryptState([]byte("secret"))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "")
	_, err = DecryptState(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EncryptionKeyEnvVar)
}

func TestDecryptState_WrongKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "key-one")
	encrypted, err := EncryptState([]byte("secret"))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "key-two")
	_, err = DecryptState(encrypted)
	require.Error(t, err)
}

func TestFileStore_EncryptedAtRest(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "state-key")

	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	ctx := context.Background()

	rec := &ir.StateRecord{
		Kind:       ir.KindManagedDatabase,
		ProviderID: "p-db",
		Attributes: map[string]any{"connection": "postgres://user:pass@db/app"},
		Status:     ir.StatusApplied,
	}
	require.NoError(t, store.Save(ctx, "db", rec))

	// Nothing sensitive on disk.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "postgres://")

	// A fresh store with the key reads it back.
	records, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "postgres://user:pass@db/app", records["db"].Attributes["connection"])
}
