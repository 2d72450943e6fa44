package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"golang.org/x/time/rate"
)

// AlertPublisher publishes alerts to an external event bus
type AlertPublisher interface {
	Publish(ctx context.Context, severity models.AlertSeverity, alertType, message string, details map[string]any) error
}

// AlertBroadcaster pushes alerts to connected live-feed subscribers
type AlertBroadcaster interface {
	Broadcast(event any)
}

// AlertService is the default AlertSink: alerts always go to the structured
// log, and additionally to an event bus and a live feed when configured.
// A per-type token bucket suppresses alert storms; critical alerts are
// never throttled.
type AlertService struct {
	logger      *slog.Logger
	publisher   AlertPublisher
	broadcaster AlertBroadcaster

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	perType rate.Limit
	burst   int
}

// AlertPayload is the shape handed to the broadcaster
type AlertPayload struct {
	Kind      string               `json:"kind"`
	Severity  models.AlertSeverity `json:"severity"`
	AlertType string               `json:"alert_type"`
	Message   string               `json:"message"`
	Details   map[string]any       `json:"details,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewAlertService creates an AlertService. publisher and broadcaster may be
// nil when the corresponding sink is not configured.
func NewAlertService(logger *slog.Logger, publisher AlertPublisher, broadcaster AlertBroadcaster) *AlertService {
	return &AlertService{
		logger:      logger,
		publisher:   publisher,
		broadcaster: broadcaster,
		buckets:     make(map[string]*rate.Limiter),
		perType:     rate.Every(10 * time.Second),
		burst:       5,
	}
}

// SendAlert implements AlertSink
func (s *AlertService) SendAlert(ctx context.Context, severity models.AlertSeverity, alertType, message string, details map[string]any) {
	if severity != models.SeverityCritical && !s.allow(alertType) {
		s.logger.Debug("alert throttled",
			slog.String("alert_type", alertType),
			slog.String("severity", string(severity)))
		return
	}

	level := slog.LevelInfo
	switch severity {
	case models.SeverityMedium:
		level = slog.LevelWarn
	case models.SeverityHigh, models.SeverityCritical:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "security alert",
		slog.String("alert_type", alertType),
		slog.String("severity", string(severity)),
		slog.String("message", message),
		slog.Any("details", details))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, severity, alertType, message, details); err != nil {
			s.logger.Error("failed to publish alert",
				slog.String("alert_type", alertType),
				slog.Any("error", err))
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(AlertPayload{
			Kind:      "alert",
			Severity:  severity,
			AlertType: alertType,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (s *AlertService) allow(alertType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.buckets[alertType]
	if !ok {
		bucket = rate.NewLimiter(s.perType, s.burst)
		s.buckets[alertType] = bucket
	}
	return bucket.Allow()
}
