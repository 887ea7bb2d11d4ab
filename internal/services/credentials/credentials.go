// Package credentials stores and serves exchange API keys. Keys are
// encrypted at rest with AES-256-GCM; decrypted pairs exist only for the
// duration of the operation that needed them.
package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

const ivLength = 16

// Cipher encrypts and decrypts credential strings. The wire format is
// iv:ciphertext:authTag, each part hex encoded.
type Cipher struct {
	key []byte
}

// NewCipher creates a cipher from a 64-character hex key (32 bytes).
func NewCipher(hexKey string) (*Cipher, error) {
	if len(hexKey) != 64 {
		return nil, errors.New("encryption key must be 64 hex characters (32 bytes)")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "encryption key is not valid hex")
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals the plaintext under a random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to init cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return "", errors.Wrap(err, "failed to init gcm")
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "failed to generate iv")
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext) + ":" + hex.EncodeToString(tag), nil
}

// Decrypt opens an iv:ciphertext:authTag blob.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	parts := strings.Split(encrypted, ":")
	if len(parts) != 3 {
		return "", errors.New("invalid encrypted format, want iv:ciphertext:authTag")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", errors.Wrap(err, "invalid iv encoding")
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", errors.Wrap(err, "invalid ciphertext encoding")
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", errors.Wrap(err, "invalid auth tag encoding")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to init cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return "", errors.Wrap(err, "failed to init gcm")
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt")
	}
	return string(plaintext), nil
}

// Store serves decrypted credentials from the API key repository.
type Store struct {
	keys   domain.APIKeyRepository
	cipher *Cipher
}

// NewStore creates a credential store.
func NewStore(keys domain.APIKeyRepository, cipher *Cipher) *Store {
	return &Store{keys: keys, cipher: cipher}
}

// Active returns the user's decrypted credential pair or
// domain.ErrNoActiveCredential.
func (s *Store) Active(ctx context.Context, userID uuid.UUID) (domain.Credentials, error) {
	key, err := s.keys.ActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Credentials{}, errors.Wrapf(domain.ErrNoActiveCredential, "user %s", userID)
		}
		return domain.Credentials{}, errors.Wrap(err, "failed to load api key")
	}

	apiKey, err := s.cipher.Decrypt(key.APIKeyEncrypted)
	if err != nil {
		return domain.Credentials{}, errors.Wrap(err, "failed to decrypt api key")
	}
	apiSecret, err := s.cipher.Decrypt(key.APISecretEncrypted)
	if err != nil {
		return domain.Credentials{}, errors.Wrap(err, "failed to decrypt api secret")
	}

	return domain.Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}
