package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/store"
	"github.com/google/uuid"
)

const keyPrefix = "snt_"

// APIKeyManager issues and authenticates admin API keys. Keys are random
// 256-bit values in the format snt_<64 hex chars>; only the SHA256 hash is
// stored, keyed by hash so authentication is a single lookup.
type APIKeyManager struct {
	keys store.KeyedStore[*models.APIKey]
	ttl  time.Duration
}

// NewAPIKeyManager creates a new APIKeyManager
func NewAPIKeyManager(keys store.KeyedStore[*models.APIKey], ttl time.Duration) *APIKeyManager {
	return &APIKeyManager{keys: keys, ttl: ttl}
}

// Issue generates a new API key and registers it.
// Returns the plaintext key (shown once to the caller) and the stored record.
func (m *APIKeyManager) Issue(name string) (string, *models.APIKey, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plainKey := keyPrefix + hex.EncodeToString(randomBytes)
	hash := HashAPIKey(plainKey)

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyPrefix: plainKey[:12],
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(m.ttl),
	}
	m.keys.Put(hash, key)

	return plainKey, key, nil
}

// Register stores a record for an externally supplied plaintext key.
// Used to bootstrap the first admin credential from the environment.
func (m *APIKeyManager) Register(plainKey, name string) (*models.APIKey, error) {
	if err := validateKeyFormat(plainKey); err != nil {
		return nil, err
	}

	hash := HashAPIKey(plainKey)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyPrefix: plainKey[:12],
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(m.ttl),
	}
	m.keys.Put(hash, key)

	return key, nil
}

// Authenticate resolves a plaintext key to its record. Expired keys do not
// authenticate. LastUsedAt is updated on success.
func (m *APIKeyManager) Authenticate(plainKey string) (*models.APIKey, bool) {
	if validateKeyFormat(plainKey) != nil {
		return nil, false
	}

	hash := HashAPIKey(plainKey)

	var match *models.APIKey
	m.keys.Update(hash, func(current *models.APIKey, exists bool) (*models.APIKey, bool) {
		if !exists {
			return nil, true
		}
		// Hash equality got us here; compare again in constant time
		if !ConstantTimeHashCompare(current.KeyHash, hash) || current.IsExpired() {
			return current, false
		}
		now := time.Now().UTC()
		current.LastUsedAt = &now
		match = current
		return current, false
	})

	return match, match != nil
}

// Revoke removes the key with the given ID. Returns false if no such key.
func (m *APIKeyManager) Revoke(id uuid.UUID) bool {
	for hash, key := range m.snapshot() {
		if key.ID == id {
			m.keys.Delete(hash)
			return true
		}
	}
	return false
}

// List returns all registered keys
func (m *APIKeyManager) List() []*models.APIKey {
	keys := make([]*models.APIKey, 0)
	for _, key := range m.snapshot() {
		keys = append(keys, key)
	}
	return keys
}

// Expiring returns keys that expire within the given lead time
func (m *APIKeyManager) Expiring(lead time.Duration) []*models.APIKey {
	expiring := make([]*models.APIKey, 0)
	for _, key := range m.snapshot() {
		if key.ExpiresWithin(lead) {
			expiring = append(expiring, key)
		}
	}
	return expiring
}

// SweepExpired removes keys past their expiry and returns how many were removed
func (m *APIKeyManager) SweepExpired() int {
	return m.keys.Sweep(func(_ string, key *models.APIKey) bool {
		return key.IsExpired()
	})
}

type snapshotter interface {
	Snapshot() map[string]*models.APIKey
}

func (m *APIKeyManager) snapshot() map[string]*models.APIKey {
	if s, ok := m.keys.(snapshotter); ok {
		return s.Snapshot()
	}
	return nil
}

// HashAPIKey hashes a plaintext key with SHA256
func HashAPIKey(plainKey string) string {
	hashBytes := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(hashBytes[:])
}

// ConstantTimeHashCompare compares two SHA256 hashes in constant time
func ConstantTimeHashCompare(hash1, hash2 string) bool {
	return subtle.ConstantTimeCompare([]byte(hash1), []byte(hash2)) == 1
}

func validateKeyFormat(plainKey string) error {
	if !strings.HasPrefix(plainKey, keyPrefix) {
		return errors.New("invalid API key format: missing prefix")
	}
	if len(plainKey) != len(keyPrefix)+64 {
		return fmt.Errorf("invalid API key format: expected %d chars, got %d", len(keyPrefix)+64, len(plainKey))
	}
	return nil
}
