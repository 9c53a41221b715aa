package state

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// EncryptionKeyEnvVar names the environment variable holding the state
// encryption key. When unset, state is stored in the clear.
const EncryptionKeyEnvVar = "TERRANE_STATE_ENCRYPTION_KEY"

// encryptionHeader marks a state payload as ciphertext. Everything after
// it is base64 of nonce||sealed.
var encryptionHeader = []byte("# TERRANE_ENCRYPTED_STATE\n")

// EncryptState seals state content with AES-256-GCM under the
// environment key. Without a key the content passes through unchanged.
func EncryptState(content []byte) ([]byte, error) {
	gcm, err := stateCipher()
	if err != nil {
		return nil, err
	}
	if gcm == nil {
		return content, nil
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, content, nil)

	var out bytes.Buffer
	out.Write(encryptionHeader)
	out.WriteString(base64.StdEncoding.EncodeToString(sealed))
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// DecryptState opens sealed state content. Content without the
// encryption header passes through unchanged.
func DecryptState(content []byte) ([]byte, error) {
	if !IsEncrypted(content) {
		return content, nil
	}

	gcm, err := stateCipher()
	if err != nil {
		return nil, err
	}
	if gcm == nil {
		return nil, fmt.Errorf("state is encrypted but %s is not set", EncryptionKeyEnvVar)
	}

	encoded := bytes.TrimSpace(bytes.TrimPrefix(content, encryptionHeader))
	sealed, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding encrypted state: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted state truncated")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting state (wrong key?): %w", err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether state content carries the encryption header.
func IsEncrypted(content []byte) bool {
	return bytes.HasPrefix(content, encryptionHeader)
}

// stateCipher builds the AEAD from the environment key, or returns nil
// when no key is configured. The key is padded or truncated to the 32
// bytes AES-256 requires.
func stateCipher() (cipher.AEAD, error) {
	raw := os.Getenv(EncryptionKeyEnvVar)
	if raw == "" {
		return nil, nil
	}

	key := make([]byte, 32)
	copy(key, raw)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
