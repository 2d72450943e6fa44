package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/store"
)

// Activities retained per tracker record; oldest evicted first
const activityHistoryCap = 100

// BlocklistService accumulates discrete suspicious-activity events per IP
// and promotes repeat offenders into time-boxed bans. It is fed by
// qualitative detection signals (malformed payloads, honeypot hits) and is
// deliberately decoupled from the rate limiter's request counting.
type BlocklistService struct {
	tracker store.KeyedStore[*models.SuspiciousActivityRecord]
	blocks  store.KeyedStore[*models.BlockRecord]
	alerts  AlertSink
	audit   EventLogger
	logger  *slog.Logger
}

// NewBlocklistService creates a BlocklistService
func NewBlocklistService(
	tracker store.KeyedStore[*models.SuspiciousActivityRecord],
	blocks store.KeyedStore[*models.BlockRecord],
	alerts AlertSink,
	audit EventLogger,
	logger *slog.Logger,
) *BlocklistService {
	return &BlocklistService{
		tracker: tracker,
		blocks:  blocks,
		alerts:  alerts,
		audit:   audit,
		logger:  logger,
	}
}

// RecordActivity appends one suspicious event to ip's record. Reaching the
// activity threshold atomically promotes the record into a ban: the block
// is installed and the tracker record deleted in the same critical section.
func (s *BlocklistService) RecordActivity(ctx context.Context, ip, activityType, details string) {
	if ip == "" {
		return
	}

	now := time.Now()
	var promoted *models.BlockRecord

	s.tracker.Update(ip, func(rec *models.SuspiciousActivityRecord, exists bool) (*models.SuspiciousActivityRecord, bool) {
		if !exists {
			rec = &models.SuspiciousActivityRecord{IP: ip, FirstDetectedAt: now}
		}
		rec.Count++
		rec.LastDetectedAt = now
		rec.Activities = append(rec.Activities, models.SuspiciousActivity{
			Type:      activityType,
			Timestamp: now,
			Details:   details,
		})
		if len(rec.Activities) > activityHistoryCap {
			rec.Activities = rec.Activities[len(rec.Activities)-activityHistoryCap:]
		}

		if rec.Count < models.SuspiciousActivityThreshold {
			return rec, false
		}

		// Threshold reached: install the ban while still holding the
		// tracker lock, then drop the tracker record
		block := &models.BlockRecord{
			IP:         ip,
			Reason:     fmt.Sprintf("%d suspicious activities, last: %s", rec.Count, activityType),
			BlockedAt:  now,
			ExpiresAt:  now.Add(models.BlockDuration),
			Activities: append([]models.SuspiciousActivity(nil), rec.Activities...),
		}
		s.blocks.Put(ip, block)
		promoted = block
		return nil, true
	})

	if promoted == nil {
		return
	}

	s.logger.Warn("ip blocked for suspicious activity",
		slog.String("ip", ip),
		slog.String("reason", promoted.Reason),
		slog.Time("expires_at", promoted.ExpiresAt))
	s.alerts.SendAlert(ctx, models.SeverityMedium, models.AlertTypeIPBlocked,
		fmt.Sprintf("blocked %s until %s: %s", ip, promoted.ExpiresAt.Format(time.RFC3339), promoted.Reason),
		map[string]any{
			"ip":         ip,
			"reason":     promoted.Reason,
			"expires_at": promoted.ExpiresAt,
			"activities": len(promoted.Activities),
		})
}

// IsBlocked reports whether ip currently has an active ban. Expired bans
// are evicted on read so repeated calls after expiry stay false and never
// resurrect the record.
func (s *BlocklistService) IsBlocked(ip string) bool {
	_, blocked := s.BlockedUntil(ip)
	return blocked
}

// BlockedUntil returns the ban expiry for ip, if an active ban exists
func (s *BlocklistService) BlockedUntil(ip string) (time.Time, bool) {
	if ip == "" {
		return time.Time{}, false
	}

	now := time.Now()
	var expiresAt time.Time
	var active bool

	s.blocks.Update(ip, func(block *models.BlockRecord, exists bool) (*models.BlockRecord, bool) {
		if !exists {
			return nil, true
		}
		if block.Expired(now) {
			return nil, true
		}
		expiresAt = block.ExpiresAt
		active = true
		return block, false
	})

	return expiresAt, active
}

// Unblock removes an active ban. Returns false when no ban exists, which
// callers treat as an administrative miss rather than an error.
func (s *BlocklistService) Unblock(ctx context.Context, ip, actor string) bool {
	if !s.blocks.Delete(ip) {
		return false
	}
	s.audit.LogEvent(ctx, actor,
		fmt.Sprintf("manually unblocked %s", ip),
		map[string]any{"event_type": models.AuditEventUnblock, "ip": ip})
	return true
}

// Blocked returns all active bans for administrative listing, skipping any
// that have lapsed but not yet been swept
func (s *BlocklistService) Blocked() []*models.BlockRecord {
	now := time.Now()
	out := make([]*models.BlockRecord, 0)
	s.blocks.Sweep(func(key string, block *models.BlockRecord) bool {
		if !block.Expired(now) {
			out = append(out, block)
		}
		return false
	})
	return out
}

// SweepExpired drops lapsed bans and tracker records gone quiet past the
// inactivity window. Runs from the background maintenance loop to bound
// memory for IPs that are never read again.
func (s *BlocklistService) SweepExpired() (blocks, trackers int) {
	now := time.Now()
	blocks = s.blocks.Sweep(func(key string, block *models.BlockRecord) bool {
		return block.Expired(now)
	})
	cutoff := now.Add(-models.SuspiciousInactivityWindow)
	trackers = s.tracker.Sweep(func(key string, rec *models.SuspiciousActivityRecord) bool {
		return rec.LastDetectedAt.Before(cutoff)
	})
	return blocks, trackers
}
