package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blocklistFixture struct {
	service *services.BlocklistService
	tracker *store.MemoryStore[*models.SuspiciousActivityRecord]
	blocks  *store.MemoryStore[*models.BlockRecord]
	alerts  *mockAlertSink
	audit   *mockEventLogger
}

func newBlocklistFixture() *blocklistFixture {
	f := &blocklistFixture{
		tracker: store.NewMemoryStore[*models.SuspiciousActivityRecord](),
		blocks:  store.NewMemoryStore[*models.BlockRecord](),
		alerts:  &mockAlertSink{},
		audit:   &mockEventLogger{},
	}
	f.service = services.NewBlocklistService(f.tracker, f.blocks, f.alerts, f.audit, testLogger())
	return f
}

func TestBlocklistService_BlocksOnFifthActivity(t *testing.T) {
	// Scenario: five honeypot hits within the window ban the IP outright,
	// independent of its rate-limit status
	f := newBlocklistFixture()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.service.RecordActivity(ctx, "192.0.2.1", models.ActivityHoneypotHit, "GET /wp-admin")
		assert.False(t, f.service.IsBlocked("192.0.2.1"))
	}

	f.service.RecordActivity(ctx, "192.0.2.1", models.ActivityHoneypotHit, "GET /wp-admin")
	assert.True(t, f.service.IsBlocked("192.0.2.1"))

	alerts := f.alerts.ofType(models.AlertTypeIPBlocked)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
}

func TestBlocklistService_PromotionCopiesActivitiesAndDropsTracker(t *testing.T) {
	f := newBlocklistFixture()
	ctx := context.Background()

	types := []string{
		models.ActivityMalformedPayload,
		models.ActivityHoneypotHit,
		models.ActivityAuthFailure,
		models.ActivityPathScanning,
		models.ActivityMalformedPayload,
	}
	for _, at := range types {
		f.service.RecordActivity(ctx, "192.0.2.2", at, "")
	}

	block, ok := f.blocks.Get("192.0.2.2")
	require.True(t, ok)
	assert.Len(t, block.Activities, 5)
	assert.Equal(t, models.ActivityMalformedPayload, block.Activities[0].Type)

	_, trackerLeft := f.tracker.Get("192.0.2.2")
	assert.False(t, trackerLeft, "tracker record is deleted on promotion")
}

func TestBlocklistService_ExpiredBanIsEvictedOnRead(t *testing.T) {
	f := newBlocklistFixture()
	f.blocks.Put("192.0.2.3", &models.BlockRecord{
		IP:        "192.0.2.3",
		BlockedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	})

	// Idempotent: repeated reads after expiry stay false and do not
	// resurrect the record
	assert.False(t, f.service.IsBlocked("192.0.2.3"))
	assert.False(t, f.service.IsBlocked("192.0.2.3"))
	_, exists := f.blocks.Get("192.0.2.3")
	assert.False(t, exists)
}

func TestBlocklistService_BanDurationIsOneHour(t *testing.T) {
	f := newBlocklistFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.service.RecordActivity(ctx, "192.0.2.4", models.ActivityPathScanning, "")
	}

	until, blocked := f.service.BlockedUntil("192.0.2.4")
	require.True(t, blocked)
	assert.InDelta(t, time.Hour.Seconds(), time.Until(until).Seconds(), 2)
}

func TestBlocklistService_UnblockReturnsFalseForUnknownIP(t *testing.T) {
	f := newBlocklistFixture()
	ctx := context.Background()

	assert.False(t, f.service.Unblock(ctx, "192.0.2.5", "admin"))
	assert.Equal(t, 0, f.audit.count())
}

func TestBlocklistService_UnblockRemovesBanAndAudits(t *testing.T) {
	f := newBlocklistFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.service.RecordActivity(ctx, "192.0.2.6", models.ActivityAuthFailure, "")
	}
	require.True(t, f.service.IsBlocked("192.0.2.6"))

	assert.True(t, f.service.Unblock(ctx, "192.0.2.6", "admin"))
	assert.False(t, f.service.IsBlocked("192.0.2.6"))
	assert.Equal(t, 1, f.audit.count())
	assert.Equal(t, models.AuditEventUnblock, f.audit.last().Details["event_type"])
}

func TestBlocklistService_CountsResetAfterBan(t *testing.T) {
	f := newBlocklistFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.service.RecordActivity(ctx, "192.0.2.7", models.ActivityAuthFailure, "")
	}
	f.service.Unblock(ctx, "192.0.2.7", "admin")

	// Post-ban activity starts a fresh tracker record
	f.service.RecordActivity(ctx, "192.0.2.7", models.ActivityAuthFailure, "")
	rec, ok := f.tracker.Get("192.0.2.7")
	require.True(t, ok)
	assert.Equal(t, uint(1), rec.Count)
	assert.False(t, f.service.IsBlocked("192.0.2.7"))
}

func TestBlocklistService_SweepExpired(t *testing.T) {
	f := newBlocklistFixture()

	f.blocks.Put("192.0.2.8", &models.BlockRecord{
		IP:        "192.0.2.8",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	f.blocks.Put("192.0.2.9", &models.BlockRecord{
		IP:        "192.0.2.9",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	f.tracker.Put("192.0.2.10", &models.SuspiciousActivityRecord{
		IP:             "192.0.2.10",
		LastDetectedAt: time.Now().Add(-3 * time.Hour),
	})

	blocks, trackers := f.service.SweepExpired()
	assert.Equal(t, 1, blocks)
	assert.Equal(t, 1, trackers)
	assert.True(t, f.service.IsBlocked("192.0.2.9"))
}
