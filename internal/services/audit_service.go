package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/google/uuid"
)

// AuditEventRepository persists audit events
type AuditEventRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

// AuditService is the default EventLogger, with a dual-write pattern:
// immediate slog output plus optional database persistence. Persistence
// failures are logged, never propagated.
type AuditService struct {
	repo   AuditEventRepository
	logger *slog.Logger
}

// NewAuditService creates an AuditService. repo may be nil when audit
// persistence is not configured.
func NewAuditService(repo AuditEventRepository, logger *slog.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// LogEvent implements EventLogger
func (s *AuditService) LogEvent(ctx context.Context, actor, message string, details map[string]any) {
	s.logger.InfoContext(ctx, "audit event",
		slog.String("actor", actor),
		slog.String("message", message),
		slog.Any("details", details))

	if s.repo == nil {
		return
	}

	event := &models.AuditEvent{
		ID:        uuid.New(),
		Actor:     actor,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("actor", actor),
			slog.Any("error", err))
	}
}
