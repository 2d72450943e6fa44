package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/internal/store"
	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/go-chi/chi/v5/middleware"
)

// TokenPrincipal resolves a request to an authenticated principal.
// Anonymous requests resolve to empty strings.
type TokenPrincipal interface {
	PrincipalFromRequest(r *http.Request) (userID, role string)
}

// SharedWindowConfig enables the optional Redis pre-filter that lets
// multiple instances share one coarse ceiling per identity
type SharedWindowConfig struct {
	Limit  int
	Window time.Duration
}

// Paths that legitimate clients never request. A hit counts as suspicious
// activity regardless of rate.
var honeypotPaths = map[string]struct{}{
	"/.env":             {},
	"/.git/config":      {},
	"/wp-admin":         {},
	"/wp-login.php":     {},
	"/admin.php":        {},
	"/phpmyadmin":       {},
	"/config.php":       {},
	"/etc/passwd":       {},
	"/actuator/env":     {},
	"/id_rsa":           {},
	"/backup.sql":       {},
	"/.aws/credentials": {},
}

// Admission gates every request through the admission engine: it derives
// the identity, consults the optional shared Redis window, asks the facade
// for a verdict, shapes the rate-limit response headers, and feeds request
// outcomes and latency observations back into the engine.
type Admission struct {
	facade    *services.AdmissionService
	detector  *services.AnomalyService
	principal TokenPrincipal
	shared    *store.RedisWindow
	sharedCfg SharedWindowConfig
	ipConfig  *httpx.IPConfig
	logger    *slog.Logger
}

// NewAdmission creates the admission middleware. shared may be nil when no
// Redis pre-filter is configured.
func NewAdmission(
	facade *services.AdmissionService,
	detector *services.AnomalyService,
	principal TokenPrincipal,
	shared *store.RedisWindow,
	sharedCfg SharedWindowConfig,
	ipConfig *httpx.IPConfig,
	logger *slog.Logger,
) *Admission {
	return &Admission{
		facade:    facade,
		detector:  detector,
		principal: principal,
		shared:    shared,
		sharedCfg: sharedCfg,
		ipConfig:  ipConfig,
		logger:    logger,
	}
}

// Handler is the middleware entry point
func (m *Admission) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ip := httpx.ExtractClientIP(r, m.ipConfig)
		userID, role := m.principal.PrincipalFromRequest(r)
		identity := deriveIdentity(ip, userID)

		if m.isHoneypotPath(r.URL.Path) {
			m.facade.RecordActivity(ctx, ip, models.ActivityHoneypotHit, r.Method+" "+r.URL.Path)
			httpx.WriteNotFound(w, "not found")
			return
		}

		if !m.sharedWindowAllows(ctx, identity) {
			w.Header().Set("Retry-After", strconv.Itoa(int(m.sharedCfg.Window.Seconds())))
			httpx.WriteTooManyRequests(w, models.DenyReasonRateLimited, "rate limit exceeded")
			return
		}

		decision := m.facade.Admit(ctx, identity, r.URL.Path, role)
		writeRateLimitHeaders(w, decision)

		if !decision.Allow {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			if decision.Reason == models.DenyReasonIPBanned {
				httpx.WriteForbidden(w, "access denied")
				return
			}
			httpx.WriteTooManyRequests(w, decision.Reason, "rate limit exceeded")
			return
		}

		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		m.facade.RecordOutcome(ctx, identity, wrapped.Status())
		m.observeRequest(ctx, r, userID, start)
	})
}

// FlagMalformedPayload records a malformed-request signal against the
// caller's IP. Handlers invoke this when body parsing or validation fails.
func (m *Admission) FlagMalformedPayload(r *http.Request, detail string) {
	ip := httpx.ExtractClientIP(r, m.ipConfig)
	m.facade.RecordActivity(r.Context(), ip, models.ActivityMalformedPayload, detail)
}

func (m *Admission) isHoneypotPath(path string) bool {
	cleaned := strings.TrimSuffix(strings.ToLower(path), "/")
	_, ok := honeypotPaths[cleaned]
	return ok
}

func (m *Admission) sharedWindowAllows(ctx context.Context, identity models.IdentityKey) bool {
	if m.shared == nil {
		return true
	}

	allowed, err := m.shared.Allow(ctx, "shared:"+identity.String(), m.sharedCfg.Limit, m.sharedCfg.Window)
	if err != nil {
		// Shared window is an optimization; fail open when Redis is down
		m.logger.Warn("shared rate window unavailable",
			slog.String("identity", identity.String()),
			slog.Any("error", err))
		return true
	}
	return allowed
}

func (m *Admission) observeRequest(ctx context.Context, r *http.Request, userID string, start time.Time) {
	elapsed := float64(time.Since(start).Milliseconds())
	m.detector.Observe(ctx, models.MetricKey{
		MetricType: models.MetricResponseTime,
		UserID:     userID,
		Endpoint:   r.URL.Path,
	}, elapsed, time.Now())

	if r.ContentLength > 0 {
		m.detector.Observe(ctx, models.MetricKey{
			MetricType: models.MetricPayloadSize,
			UserID:     userID,
			Endpoint:   r.URL.Path,
		}, float64(r.ContentLength), time.Now())
	}
}

func deriveIdentity(ip, userID string) models.IdentityKey {
	if userID != "" {
		return models.CombinedIdentity(ip, userID)
	}
	return models.IPIdentity(ip)
}

func writeRateLimitHeaders(w http.ResponseWriter, decision models.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(uint64(decision.Limit), 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatUint(uint64(decision.Remaining), 10))
	if !decision.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
}
