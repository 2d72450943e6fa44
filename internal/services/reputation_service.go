package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/store"
)

// Adjustments at or beyond this magnitude are written to the audit trail
const reputationAuditThreshold = 10.0

// ReputationService tracks a bounded [0,100] trust score per IP.
// Scores start at full trust and are moved by bounded deltas on every
// meaningful outcome; they never decay purely with time.
type ReputationService struct {
	scores store.KeyedStore[*models.ReputationScore]
	alerts AlertSink
	audit  EventLogger
	logger *slog.Logger
}

// NewReputationService creates a ReputationService
func NewReputationService(scores store.KeyedStore[*models.ReputationScore], alerts AlertSink, audit EventLogger, logger *slog.Logger) *ReputationService {
	return &ReputationService{
		scores: scores,
		alerts: alerts,
		audit:  audit,
		logger: logger,
	}
}

// Get returns the current score for ip, defaulting to full trust for IPs
// that have never been observed
func (s *ReputationService) Get(ip string) float64 {
	if ip == "" {
		return models.ReputationDefault
	}
	if rec, ok := s.scores.Get(ip); ok {
		return rec.Score
	}
	return models.ReputationDefault
}

// Adjust applies delta to ip's score, clamped to [0,100], and returns the
// new score. Crossing downward through the alert threshold raises a medium
// alert once per crossing; large adjustments are audited.
func (s *ReputationService) Adjust(ctx context.Context, ip string, delta float64, reason string) float64 {
	if ip == "" {
		return models.ReputationDefault
	}

	now := time.Now()
	var oldScore, newScore float64

	s.scores.Update(ip, func(rec *models.ReputationScore, exists bool) (*models.ReputationScore, bool) {
		if !exists {
			rec = &models.ReputationScore{IP: ip, Score: models.ReputationDefault}
		}
		oldScore = rec.Score
		rec.Score = models.ClampReputation(rec.Score + delta)
		rec.LastSeen = now
		rec.UpdatedAt = now
		newScore = rec.Score
		return rec, false
	})

	if math.Abs(delta) >= reputationAuditThreshold {
		s.audit.LogEvent(ctx, ip,
			fmt.Sprintf("reputation adjusted by %.1f (%s)", delta, reason),
			map[string]any{
				"event_type": models.AuditEventReputationChange,
				"old_score":  oldScore,
				"new_score":  newScore,
				"reason":     reason,
			})
	}

	// Alert only on the transition through the threshold, not on every
	// further drop while already below it
	if oldScore > models.ReputationAlertThreshold && newScore <= models.ReputationAlertThreshold {
		s.alerts.SendAlert(ctx, models.SeverityMedium, models.AlertTypeLowReputation,
			fmt.Sprintf("reputation for %s dropped to %.1f", ip, newScore),
			map[string]any{
				"ip":        ip,
				"old_score": oldScore,
				"new_score": newScore,
				"reason":    reason,
			})
	}

	return newScore
}

// RecordSuccess nudges the score up after a normally-completed request
func (s *ReputationService) RecordSuccess(ctx context.Context, ip string) float64 {
	return s.Adjust(ctx, ip, models.ReputationDeltaSuccess, "request_success")
}

// RecordAuthFailure penalizes a failed authentication attempt
func (s *ReputationService) RecordAuthFailure(ctx context.Context, ip string) float64 {
	return s.Adjust(ctx, ip, models.ReputationDeltaAuthFailure, "auth_failure")
}

// SweepLow visits all scores below cutoff and reports them through the
// alert sink. Called from the background maintenance loop.
func (s *ReputationService) SweepLow(ctx context.Context, cutoff float64) int {
	flagged := 0
	low := make(map[string]float64)

	s.scores.Sweep(func(key string, rec *models.ReputationScore) bool {
		if rec.Score < cutoff {
			low[key] = rec.Score
		}
		return false
	})

	for ip, score := range low {
		flagged++
		s.logger.Warn("persistently low reputation",
			slog.String("ip", ip),
			slog.Float64("score", score))
	}
	if flagged > 0 {
		s.alerts.SendAlert(ctx, models.SeverityLow, models.AlertTypeLowReputation,
			fmt.Sprintf("%d identities below reputation %.0f", flagged, cutoff),
			map[string]any{"count": flagged, "cutoff": cutoff})
	}
	return flagged
}

// Snapshot returns copies of all tracked scores for administrative
// listing. Copies are taken under the store's shard locks so listings do
// not race hot-path adjustments.
func (s *ReputationService) Snapshot() map[string]*models.ReputationScore {
	out := make(map[string]*models.ReputationScore)
	s.scores.Sweep(func(key string, rec *models.ReputationScore) bool {
		out[key] = rec.Clone()
		return false
	})
	return out
}
