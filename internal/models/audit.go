package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one entry in the security audit trail
type AuditEvent struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Actor     string         `json:"actor" db:"actor"`
	Message   string         `json:"message" db:"message"`
	Details   map[string]any `json:"details,omitempty" db:"details"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
