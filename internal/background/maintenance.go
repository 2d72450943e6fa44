package background

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/config"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/services"
)

// AuditCleaner prunes persisted audit events older than a cutoff
type AuditCleaner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// MaintenanceManager periodically sweeps idle counters, expired bans and
// trackers, recomputes anomaly baselines from retained raw observations,
// reports persistently low reputation scores, and warns about admin keys
// nearing expiry
type MaintenanceManager struct {
	limiter    *services.RateLimitService
	blocklist  *services.BlocklistService
	reputation *services.ReputationService
	detector   *services.AnomalyService
	keys       *auth.APIKeyManager
	alerts     services.AlertSink
	audit      AuditCleaner
	config     config.MaintenanceConfig
	logger     *slog.Logger
	stopCh     chan struct{}
}

// NewMaintenanceManager creates a new maintenance manager
func NewMaintenanceManager(
	limiter *services.RateLimitService,
	blocklist *services.BlocklistService,
	reputation *services.ReputationService,
	detector *services.AnomalyService,
	keys *auth.APIKeyManager,
	alerts services.AlertSink,
	cfg config.MaintenanceConfig,
	logger *slog.Logger,
) *MaintenanceManager {
	return &MaintenanceManager{
		limiter:    limiter,
		blocklist:  blocklist,
		reputation: reputation,
		detector:   detector,
		keys:       keys,
		alerts:     alerts,
		config:     cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic maintenance task. Baseline recompute runs on
// its own, slower cadence; rebuilding every metric's stats from the raw
// window is much heavier than the sweeps.
func (mm *MaintenanceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(mm.config.SweepInterval)
	defer ticker.Stop()

	recompute := mm.config.RecomputeInterval
	if recompute <= 0 {
		recompute = mm.config.SweepInterval
	}
	recomputeTicker := time.NewTicker(recompute)
	defer recomputeTicker.Stop()

	// Run immediately on startup
	mm.RunSweep(ctx)

	for {
		select {
		case <-ticker.C:
			mm.RunSweep(ctx)
		case <-recomputeTicker.C:
			mm.RunRecompute()
		case <-mm.stopCh:
			mm.logger.Info("maintenance manager stopped")
			return
		case <-ctx.Done():
			mm.logger.Info("maintenance manager context cancelled")
			return
		}
	}
}

// SetAuditCleaner attaches an audit trail retention target. cleaner may be
// nil when audit persistence is not configured.
func (mm *MaintenanceManager) SetAuditCleaner(cleaner AuditCleaner) {
	mm.audit = cleaner
}

// Stop signals the maintenance manager to stop
func (mm *MaintenanceManager) Stop() {
	close(mm.stopCh)
}

// RunSweep executes one maintenance pass. Each phase is independent; a
// phase that finds nothing to do stays silent.
func (mm *MaintenanceManager) RunSweep(ctx context.Context) {
	start := time.Now()

	idle := mm.limiter.SweepIdle(mm.config.CounterIdleTTL)
	blocks, trackers := mm.blocklist.SweepExpired()
	lowScores := mm.reputation.SweepLow(ctx, mm.config.LowReputationCutoff)
	expiredKeys := mm.sweepCredentials(ctx)
	prunedEvents := mm.sweepAuditTrail(ctx)

	mm.logger.Info("maintenance sweep completed",
		slog.Int("idle_counters", idle),
		slog.Int("expired_blocks", blocks),
		slog.Int("expired_trackers", trackers),
		slog.Int("low_reputation_scores", lowScores),
		slog.Int("expired_api_keys", expiredKeys),
		slog.Int64("pruned_audit_events", prunedEvents),
		slog.Duration("duration", time.Since(start)))
}

// RunRecompute rebuilds every metric baseline from its retained raw window
func (mm *MaintenanceManager) RunRecompute() {
	start := time.Now()
	recomputed := mm.detector.RecomputeBaselines()
	mm.logger.Info("baseline recompute completed",
		slog.Int("recomputed_baselines", recomputed),
		slog.Duration("duration", time.Since(start)))
}

// sweepAuditTrail prunes persisted audit events past the retention window.
// Cleanup failures are logged, never propagated.
func (mm *MaintenanceManager) sweepAuditTrail(ctx context.Context) int64 {
	if mm.audit == nil || mm.config.AuditRetention <= 0 {
		return 0
	}

	pruned, err := mm.audit.Cleanup(ctx, time.Now().Add(-mm.config.AuditRetention))
	if err != nil {
		mm.logger.WarnContext(ctx, "audit trail cleanup failed", slog.Any("error", err))
		return 0
	}
	return pruned
}

// sweepCredentials removes expired admin keys and alerts on keys that will
// expire within the configured lead time
func (mm *MaintenanceManager) sweepCredentials(ctx context.Context) int {
	if mm.keys == nil {
		return 0
	}

	for _, key := range mm.keys.Expiring(mm.config.CredentialExpiryLead) {
		mm.alerts.SendAlert(ctx, models.SeverityLow, models.AlertTypeCredentialExpiry,
			fmt.Sprintf("admin API key %q expires at %s", key.Name, key.ExpiresAt.Format(time.RFC3339)),
			map[string]any{
				"key_id":     key.ID.String(),
				"name":       key.Name,
				"expires_at": key.ExpiresAt,
			})
	}

	return mm.keys.SweepExpired()
}
