package models

import "time"

// Suspicious-activity tracking thresholds
const (
	// Number of discrete suspicious activities that triggers a ban
	SuspiciousActivityThreshold = 5

	// Tracker records untouched for this long are expired
	SuspiciousInactivityWindow = 2 * time.Hour

	// Fixed ban duration; repeat bans do not escalate
	BlockDuration = 1 * time.Hour
)

// Well-known suspicious activity types fed by transport-side detection
const (
	ActivityMalformedPayload = "malformed_payload"
	ActivityHoneypotHit      = "honeypot_hit"
	ActivityAuthFailure      = "auth_failure"
	ActivityPathScanning     = "path_scanning"
)

// SuspiciousActivity is one qualitative event recorded against an IP
type SuspiciousActivity struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// SuspiciousActivityRecord accumulates discrete suspicious events per IP.
// This is a separate signal path from the rate limiter: a caller can stay
// under its request-rate limit while still earning a ban here.
type SuspiciousActivityRecord struct {
	IP              string               `json:"ip"`
	Count           uint                 `json:"count"`
	FirstDetectedAt time.Time            `json:"first_detected_at"`
	LastDetectedAt  time.Time            `json:"last_detected_at"`
	Activities      []SuspiciousActivity `json:"activities"`
}

// BlockRecord is a time-boxed IP ban produced by the blocklist, independent
// of the rate limiter's own block flag
type BlockRecord struct {
	IP         string               `json:"ip"`
	Reason     string               `json:"reason"`
	BlockedAt  time.Time            `json:"blocked_at"`
	ExpiresAt  time.Time            `json:"expires_at"`
	Activities []SuspiciousActivity `json:"activities"`
}

// Expired reports whether the ban has lapsed as of now
func (b *BlockRecord) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}
