package models

import "time"

// Reputation score bounds and standard adjustment deltas
const (
	ReputationMax     = 100.0
	ReputationMin     = 0.0
	ReputationDefault = 100.0

	// Downward crossing through this score raises a medium alert
	ReputationAlertThreshold = 30.0

	ReputationDeltaSuccess     = 1.0
	ReputationDeltaAuthFailure = -2.0

	// Rate-limit violations cost sensitivity (1-5) times this multiplier
	ReputationViolationMultiplier = 5.0

	// Requests made while a block is active cost a small fixed amount
	ReputationDeltaIgnoredBlock = -1.0
)

// ReputationScore is a bounded [0,100] trust indicator per IP
type ReputationScore struct {
	IP        string    `json:"ip"`
	Score     float64   `json:"score"`
	LastSeen  time.Time `json:"last_seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe to read outside the store's key lock
func (r *ReputationScore) Clone() *ReputationScore {
	out := *r
	return &out
}

// ClampReputation bounds a score to [ReputationMin, ReputationMax]
func ClampReputation(score float64) float64 {
	if score < ReputationMin {
		return ReputationMin
	}
	if score > ReputationMax {
		return ReputationMax
	}
	return score
}
