package services

import (
	"context"

	"github.com/Shatzii/sentinel/internal/models"
)

// AlertSink receives severity-classified notifications from the decision
// services. Implementations must never block the calling request path.
type AlertSink interface {
	SendAlert(ctx context.Context, severity models.AlertSeverity, alertType, message string, details map[string]any)
}

// EventLogger receives audit events. Implementations must never fail the
// caller; audit problems are their own to log.
type EventLogger interface {
	LogEvent(ctx context.Context, actor, message string, details map[string]any)
}
