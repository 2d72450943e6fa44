package models

import "time"

// RecentHistoryCap bounds the per-counter request history ring
const RecentHistoryCap = 100

// RequestRecord is one entry in a counter's recent-request history
type RequestRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code,omitempty"`
}

// RateCounter tracks the sliding request count and block state for one
// identity key. Counters are created lazily on first request and reaped by
// the maintenance sweep once untouched past their window.
type RateCounter struct {
	Count                 uint            `json:"count"`
	WindowStart           time.Time       `json:"window_start"`
	ResetAt               time.Time       `json:"reset_at"`
	Blocked               bool            `json:"blocked"`
	BlockExpiresAt        time.Time       `json:"block_expires_at,omitempty"`
	ConsecutiveViolations uint            `json:"consecutive_violations"`
	ViolatedInWindow      bool            `json:"violated_in_window"`
	RecentHistory         []RequestRecord `json:"recent_history,omitempty"`
	LastSeen              time.Time       `json:"last_seen"`
}

// AppendHistory records a request, evicting the oldest entry beyond the cap
func (c *RateCounter) AppendHistory(rec RequestRecord) {
	c.RecentHistory = append(c.RecentHistory, rec)
	if len(c.RecentHistory) > RecentHistoryCap {
		c.RecentHistory = c.RecentHistory[len(c.RecentHistory)-RecentHistoryCap:]
	}
}

// Clone returns a deep copy safe to read outside the store's key lock
func (c *RateCounter) Clone() *RateCounter {
	out := *c
	out.RecentHistory = append([]RequestRecord(nil), c.RecentHistory...)
	return &out
}

// Decision is the outcome of a single admission check
type Decision struct {
	Allow      bool          `json:"allow"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Limit      uint          `json:"limit"`
	Remaining  uint          `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	Reason     string        `json:"reason,omitempty"`
}

// Deny reasons surfaced on Decision.Reason
const (
	DenyReasonRateLimited = "rate_limit_exceeded"
	DenyReasonBlocked     = "temporarily_blocked"
	DenyReasonIPBanned    = "ip_banned"
)
