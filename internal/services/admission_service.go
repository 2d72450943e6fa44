package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
)

// AdmissionService is the single entry point transport code calls per
// request. It composes reputation, the rate limiter, and the blocklist into
// one allow/deny verdict. An internal fault degrades to allow plus an
// alert: the admission core must never be the reason all traffic stops.
type AdmissionService struct {
	rateLimiter *RateLimitService
	blocklist   *BlocklistService
	reputation  *ReputationService
	alerts      AlertSink
	logger      *slog.Logger
}

// NewAdmissionService creates an AdmissionService
func NewAdmissionService(
	rateLimiter *RateLimitService,
	blocklist *BlocklistService,
	reputation *ReputationService,
	alerts AlertSink,
	logger *slog.Logger,
) *AdmissionService {
	return &AdmissionService{
		rateLimiter: rateLimiter,
		blocklist:   blocklist,
		reputation:  reputation,
		alerts:      alerts,
		logger:      logger,
	}
}

// Admit decides whether one request for identity may proceed. The rate
// limiter runs first (its check also feeds reputation and the escalation
// state machine); only admitted requests are then checked against the IP
// blocklist.
func (s *AdmissionService) Admit(ctx context.Context, identity models.IdentityKey, path, role string) (decision models.Decision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("admission check panicked, degrading to allow",
				slog.String("identity", identity.String()),
				slog.String("path", path),
				slog.Any("panic", r))
			s.alerts.SendAlert(ctx, models.SeverityHigh, models.AlertTypeAdmissionFault,
				fmt.Sprintf("admission check fault for %s, request allowed", identity.String()),
				map[string]any{"identity": identity.String(), "path": path})
			decision = models.Decision{Allow: true}
		}
	}()

	if identity.IsZero() {
		// No derivable identity: nothing to account against
		return models.Decision{Allow: true}
	}

	decision = s.rateLimiter.Check(ctx, identity, path, role)
	if !decision.Allow {
		return decision
	}

	if ip := identity.IP(); ip != "" {
		if until, blocked := s.blocklist.BlockedUntil(ip); blocked {
			decision.Allow = false
			decision.RetryAfter = time.Until(until)
			decision.Remaining = 0
			decision.Reason = models.DenyReasonIPBanned
			return decision
		}
	}

	return decision
}

// RecordOutcome feeds the request's final status back into reputation:
// normal completions build trust, authentication failures erode it.
func (s *AdmissionService) RecordOutcome(ctx context.Context, identity models.IdentityKey, statusCode int) {
	ip := identity.IP()
	if ip == "" {
		return
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		s.reputation.RecordAuthFailure(ctx, ip)
	case statusCode < 400:
		s.reputation.RecordSuccess(ctx, ip)
	}
}

// RecordActivity forwards a qualitative suspicious-activity signal to the
// blocklist, independent of normal admission checks
func (s *AdmissionService) RecordActivity(ctx context.Context, ip, activityType, details string) {
	s.blocklist.RecordActivity(ctx, ip, activityType, details)
}
