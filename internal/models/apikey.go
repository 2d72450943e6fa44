package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is an admin credential for the management API. Only the SHA256
// hash of the key is retained; the plaintext is shown once at issuance.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// IsExpired checks whether the key has passed its expiry
func (k *APIKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}

// ExpiresWithin reports whether the key expires inside the given lead time
func (k *APIKey) ExpiresWithin(lead time.Duration) bool {
	return !k.IsExpired() && time.Until(k.ExpiresAt) <= lead
}
