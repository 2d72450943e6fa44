package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Shatzii/sentinel/internal/models"
)

// capturedAlert records one SendAlert call for assertions
type capturedAlert struct {
	Severity  models.AlertSeverity
	AlertType string
	Message   string
	Details   map[string]any
}

// mockAlertSink implements services.AlertSink for testing
type mockAlertSink struct {
	mu     sync.Mutex
	alerts []capturedAlert
}

func (m *mockAlertSink) SendAlert(ctx context.Context, severity models.AlertSeverity, alertType, message string, details map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, capturedAlert{
		Severity:  severity,
		AlertType: alertType,
		Message:   message,
		Details:   details,
	})
}

func (m *mockAlertSink) ofType(alertType string) []capturedAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []capturedAlert
	for _, a := range m.alerts {
		if a.AlertType == alertType {
			out = append(out, a)
		}
	}
	return out
}

// capturedEvent records one LogEvent call for assertions
type capturedEvent struct {
	Actor   string
	Message string
	Details map[string]any
}

// mockEventLogger implements services.EventLogger for testing
type mockEventLogger struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (m *mockEventLogger) LogEvent(ctx context.Context, actor, message string, details map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, capturedEvent{Actor: actor, Message: message, Details: details})
}

func (m *mockEventLogger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockEventLogger) last() capturedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
