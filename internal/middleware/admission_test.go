package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shatzii/sentinel/internal/config"
	"github.com/Shatzii/sentinel/internal/middleware"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopAlertSink struct{}

func (noopAlertSink) SendAlert(context.Context, models.AlertSeverity, string, string, map[string]any) {
}

type noopEventLogger struct{}

func (noopEventLogger) LogEvent(context.Context, string, string, map[string]any) {}

type stubPrincipal struct {
	userID string
	role   string
}

func (s *stubPrincipal) PrincipalFromRequest(*http.Request) (string, string) {
	return s.userID, s.role
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type middlewareFixture struct {
	admission *middleware.Admission
	facade    *services.AdmissionService
	detector  *services.AnomalyService
	blocklist *services.BlocklistService
}

func newMiddlewareFixture(baseLimit uint, principal *stubPrincipal) *middlewareFixture {
	logger := discardLogger()
	alerts := noopAlertSink{}
	audit := noopEventLogger{}

	reputation := services.NewReputationService(
		store.NewMemoryStore[*models.ReputationScore](), alerts, audit, logger)
	limiter := services.NewRateLimitService(
		store.NewMemoryStore[*models.RateCounter](), reputation,
		config.NewLimitsProvider(), alerts,
		services.RateLimitConfig{BaseLimit: baseLimit, Window: 15 * time.Minute}, logger)
	blocklist := services.NewBlocklistService(
		store.NewMemoryStore[*models.SuspiciousActivityRecord](),
		store.NewMemoryStore[*models.BlockRecord](),
		alerts, audit, logger)
	facade := services.NewAdmissionService(limiter, blocklist, reputation, alerts, logger)
	detector := services.NewAnomalyService(
		services.NewMetricStateStore(),
		store.NewMemoryStore[*models.Anomaly](),
		store.NewMemoryStore[*models.Incident](),
		alerts, audit, logger)

	admission := middleware.NewAdmission(
		facade, detector, principal, nil, middleware.SharedWindowConfig{}, nil, logger)

	return &middlewareFixture{
		admission: admission,
		facade:    facade,
		detector:  detector,
		blocklist: blocklist,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("GET", path, nil)
	r.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestAdmissionMiddleware_AllowedRequestGetsRateHeaders(t *testing.T) {
	f := newMiddlewareFixture(100, &stubPrincipal{})
	handler := f.admission.Handler(okHandler())

	w := doRequest(handler, "/api/data", "198.51.100.1:4000")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestAdmissionMiddleware_DeniedRequestGets429WithRetryAfter(t *testing.T) {
	f := newMiddlewareFixture(2, &stubPrincipal{})
	handler := f.admission.Handler(okHandler())

	doRequest(handler, "/api/data", "198.51.100.2:4000")
	doRequest(handler, "/api/data", "198.51.100.2:4000")
	w := doRequest(handler, "/api/data", "198.51.100.2:4000")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), models.DenyReasonRateLimited)
}

func TestAdmissionMiddleware_HoneypotPathBansAfterThreshold(t *testing.T) {
	f := newMiddlewareFixture(100, &stubPrincipal{})
	handler := f.admission.Handler(okHandler())

	for i := 0; i < models.SuspiciousActivityThreshold; i++ {
		w := doRequest(handler, "/wp-admin", "198.51.100.3:4000")
		assert.Equal(t, http.StatusNotFound, w.Code, "honeypot paths always 404")
	}

	require.True(t, f.blocklist.IsBlocked("198.51.100.3"))

	w := doRequest(handler, "/api/data", "198.51.100.3:4000")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAdmissionMiddleware_AuthenticatedIdentityIsPerUser(t *testing.T) {
	// Users behind one NAT IP get budgets separate from anonymous traffic
	principal := &stubPrincipal{userID: "user-1"}
	f := newMiddlewareFixture(1, principal)
	handler := f.admission.Handler(okHandler())

	w := doRequest(handler, "/api/data", "198.51.100.4:4000")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(handler, "/api/data", "198.51.100.4:4000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Dropping the principal switches the identity to the bare IP,
	// which still has an untouched counter
	principal.userID = ""
	w = doRequest(handler, "/api/data", "198.51.100.4:4000")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmissionMiddleware_ObservesResponseTime(t *testing.T) {
	f := newMiddlewareFixture(100, &stubPrincipal{userID: "user-2"})
	handler := f.admission.Handler(okHandler())

	doRequest(handler, "/api/data", "198.51.100.5:4000")

	key := models.MetricKey{
		MetricType: models.MetricResponseTime,
		UserID:     "user-2",
		Endpoint:   "/api/data",
	}
	// Baseline is not established yet, but the observation must be retained
	_, established := f.detector.Baseline(key)
	assert.False(t, established)

	for i := 0; i < models.BaselineMinObservations; i++ {
		doRequest(handler, "/api/data", "198.51.100.5:4000")
	}
	_, established = f.detector.Baseline(key)
	assert.True(t, established)
}

func TestAdmissionMiddleware_FlagMalformedPayload(t *testing.T) {
	f := newMiddlewareFixture(100, &stubPrincipal{})

	r := httptest.NewRequest("POST", "/api/data", nil)
	r.RemoteAddr = "198.51.100.6:4000"
	for i := 0; i < models.SuspiciousActivityThreshold; i++ {
		f.admission.FlagMalformedPayload(r, "invalid json body")
	}

	assert.True(t, f.blocklist.IsBlocked("198.51.100.6"))
}

func TestSecurityHeaders(t *testing.T) {
	handler := middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: "development"})(okHandler())

	w := doRequest(handler, "/api/data", "198.51.100.7:4000")

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := middleware.RequestLogger(discardLogger())(okHandler())

	w := doRequest(handler, "/api/data?token=abc123", "198.51.100.8:4000")
	assert.Equal(t, http.StatusOK, w.Code)
}
