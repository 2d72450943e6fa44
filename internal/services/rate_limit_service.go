package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Shatzii/sentinel/internal/config"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/store"
)

// Reputation below this fraction of full trust no longer shrinks the limit
const reputationFloorFactor = 0.2

// Escalation ladder: block duration by consecutive violation count
var blockDurations = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	24 * time.Hour,
}

// RateLimitConfig holds the limiter's fixed parameters; the role/path
// override tables come from the injected LimitsProvider
type RateLimitConfig struct {
	BaseLimit uint
	Window    time.Duration
}

// RateLimitService maintains a sliding counter per identity key, computes a
// dynamic limit from base, role, path, and reputation, and enforces an
// escalating block state machine. Each check is a single atomic unit under
// the counter's key lock.
type RateLimitService struct {
	counters   store.KeyedStore[*models.RateCounter]
	reputation *ReputationService
	limits     *config.LimitsProvider
	alerts     AlertSink
	config     RateLimitConfig
	logger     *slog.Logger
}

// NewRateLimitService creates a RateLimitService
func NewRateLimitService(
	counters store.KeyedStore[*models.RateCounter],
	reputation *ReputationService,
	limits *config.LimitsProvider,
	alerts AlertSink,
	cfg RateLimitConfig,
	logger *slog.Logger,
) *RateLimitService {
	return &RateLimitService{
		counters:   counters,
		reputation: reputation,
		limits:     limits,
		alerts:     alerts,
		config:     cfg,
		logger:     logger,
	}
}

type violationAlert struct {
	severity   models.AlertSeverity
	violations uint
	duration   time.Duration
}

// Check admits or denies one request for identity against path and role.
// Response-shaping fields (Limit, Remaining, ResetAt) are populated on
// every decision, allow or deny.
func (s *RateLimitService) Check(ctx context.Context, identity models.IdentityKey, path, role string) models.Decision {
	now := time.Now()
	tables := s.limits.Tables()
	ip := identity.IP()

	reputation := s.reputation.Get(ip)
	effectiveLimit := s.effectiveLimit(tables, role, path, reputation)
	sensitivity := tables.Sensitivity(path)

	var decision models.Decision
	var reputationDelta float64
	var reputationReason string
	var alert *violationAlert

	s.counters.Update(identity.String(), func(c *models.RateCounter, exists bool) (*models.RateCounter, bool) {
		if !exists {
			c = &models.RateCounter{
				WindowStart: now,
				ResetAt:     now.Add(s.config.Window),
			}
		}
		c.LastSeen = now

		if c.Blocked {
			if now.Before(c.BlockExpiresAt) {
				// Still blocked: hammering on a block costs a little trust
				reputationDelta = models.ReputationDeltaIgnoredBlock
				reputationReason = "ignored_block"
				decision = models.Decision{
					Allow:      false,
					RetryAfter: c.BlockExpiresAt.Sub(now),
					Limit:      effectiveLimit,
					Remaining:  0,
					ResetAt:    c.BlockExpiresAt,
					Reason:     models.DenyReasonBlocked,
				}
				return c, false
			}
			// Block lapsed: start a fresh window. The violation streak is
			// retained so a repeat offender climbs the ladder; it only
			// clears after a full window passes cleanly.
			c.Blocked = false
			c.BlockExpiresAt = time.Time{}
			c.Count = 0
			c.WindowStart = now
			c.ResetAt = now.Add(s.config.Window)
			c.ViolatedInWindow = false
		}

		if !now.Before(c.ResetAt) {
			if !c.ViolatedInWindow {
				c.ConsecutiveViolations = 0
			}
			c.Count = 0
			c.WindowStart = now
			c.ResetAt = now.Add(s.config.Window)
			c.ViolatedInWindow = false
		}

		c.Count++
		c.AppendHistory(models.RequestRecord{Timestamp: now, Path: path})

		if c.Count <= effectiveLimit {
			decision = models.Decision{
				Allow:     true,
				Limit:     effectiveLimit,
				Remaining: effectiveLimit - c.Count,
				ResetAt:   c.ResetAt,
			}
			return c, false
		}

		// Violation: install a block from the escalation ladder
		c.ViolatedInWindow = true
		c.ConsecutiveViolations++
		duration := blockDurationFor(c.ConsecutiveViolations)
		c.Blocked = true
		c.BlockExpiresAt = now.Add(duration)

		reputationDelta = -(float64(sensitivity) * models.ReputationViolationMultiplier)
		reputationReason = "rate_limit_violation"
		alert = &violationAlert{
			severity:   violationSeverity(c.ConsecutiveViolations, sensitivity),
			violations: c.ConsecutiveViolations,
			duration:   duration,
		}
		decision = models.Decision{
			Allow:      false,
			RetryAfter: duration,
			Limit:      effectiveLimit,
			Remaining:  0,
			ResetAt:    c.BlockExpiresAt,
			Reason:     models.DenyReasonRateLimited,
		}
		return c, false
	})

	// Collaborators are called outside the key lock
	if reputationDelta != 0 && ip != "" {
		s.reputation.Adjust(ctx, ip, reputationDelta, reputationReason)
	}
	if alert != nil {
		s.alerts.SendAlert(ctx, alert.severity, models.AlertTypeRateLimitExceeded,
			fmt.Sprintf("%s exceeded limit %d on %s (violation #%d, blocked %s)",
				identity.String(), effectiveLimit, path, alert.violations, alert.duration),
			map[string]any{
				"identity":    identity.String(),
				"path":        path,
				"role":        role,
				"limit":       effectiveLimit,
				"violations":  alert.violations,
				"sensitivity": sensitivity,
				"blocked_for": alert.duration.String(),
			})
		s.logger.Warn("rate limit violation",
			slog.String("identity", identity.String()),
			slog.String("path", path),
			slog.Uint64("limit", uint64(effectiveLimit)),
			slog.Uint64("violations", uint64(alert.violations)),
			slog.Duration("blocked_for", alert.duration))
	}

	return decision
}

// Status returns a copy of the counter for identity, if one exists. The
// live counter keeps mutating under its key lock, so the copy is taken
// inside that lock and callers can serialize it without racing the hot
// path.
func (s *RateLimitService) Status(identity models.IdentityKey) (*models.RateCounter, bool) {
	var snapshot *models.RateCounter
	s.counters.Update(identity.String(), func(c *models.RateCounter, exists bool) (*models.RateCounter, bool) {
		if !exists {
			return nil, true
		}
		snapshot = c.Clone()
		return c, false
	})
	return snapshot, snapshot != nil
}

// SweepIdle removes counters untouched for longer than ttl that are not
// serving an active block
func (s *RateLimitService) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	return s.counters.Sweep(func(key string, c *models.RateCounter) bool {
		if c.Blocked && time.Now().Before(c.BlockExpiresAt) {
			return false
		}
		return c.LastSeen.Before(cutoff)
	})
}

// effectiveLimit resolves the final per-window ceiling: base, overridden by
// the role table, overridden by the most specific path prefix, then scaled
// by reputation with a floor so even zero-trust traffic gets a trickle
func (s *RateLimitService) effectiveLimit(tables *config.LimitTables, role, path string, reputation float64) uint {
	limit := s.config.BaseLimit
	if roleLimit, ok := tables.RoleLimit(role); ok {
		limit = roleLimit
	}
	if pathLimit, ok := tables.PathLimit(path); ok {
		limit = pathLimit
	}

	factor := math.Max(reputationFloorFactor, reputation/models.ReputationMax)
	scaled := uint(math.Floor(float64(limit) * factor))
	if scaled == 0 {
		scaled = 1
	}
	return scaled
}

func blockDurationFor(violations uint) time.Duration {
	if violations == 0 {
		violations = 1
	}
	if int(violations) > len(blockDurations) {
		return blockDurations[len(blockDurations)-1]
	}
	return blockDurations[violations-1]
}

// violationSeverity rises with both the violation streak and how sensitive
// the endpoint is
func violationSeverity(violations uint, sensitivity int) models.AlertSeverity {
	score := int(violations) + sensitivity
	switch {
	case score >= 8:
		return models.SeverityCritical
	case score >= 6:
		return models.SeverityHigh
	case score >= 4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
