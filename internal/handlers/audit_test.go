package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shatzii/sentinel/internal/handlers"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuditStore serves canned events so handler behavior can be tested
// without a database
type fakeAuditStore struct {
	events []*models.AuditEvent

	lastLimit  int
	lastOffset int
}

func (s *fakeAuditStore) ListRecent(_ context.Context, limit, offset int) ([]*models.AuditEvent, error) {
	s.lastLimit, s.lastOffset = limit, offset
	if offset >= len(s.events) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.events) {
		end = len(s.events)
	}
	return s.events[offset:end], nil
}

func (s *fakeAuditStore) ListByActor(_ context.Context, actor string, limit, offset int) ([]*models.AuditEvent, error) {
	var matched []*models.AuditEvent
	for _, e := range s.events {
		if e.Actor == actor {
			matched = append(matched, e)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *fakeAuditStore) CountByActor(_ context.Context, actor string) (int64, error) {
	var n int64
	for _, e := range s.events {
		if e.Actor == actor {
			n++
		}
	}
	return n, nil
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func newAuditRouter(store handlers.AuditStore) *chi.Mux {
	router := chi.NewRouter()
	router.Get("/admin/audit", handlers.NewAuditHandler(store).List)
	return router
}

func seededAuditStore(n int, actor string) *fakeAuditStore {
	store := &fakeAuditStore{}
	for i := 0; i < n; i++ {
		store.events = append(store.events, &models.AuditEvent{
			ID:        uuid.New(),
			Actor:     actor,
			Message:   fmt.Sprintf("adjusted reputation %d", i),
			Details:   map[string]any{"event_type": models.AuditEventReputationChange},
			CreatedAt: time.Now().UTC(),
		})
	}
	return store
}

func TestAuditEndpointListsRecentEvents(t *testing.T) {
	store := seededAuditStore(3, "apikey:ops-dashboard")
	router := newAuditRouter(store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/audit", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Events []models.AuditEvent `json:"events"`
		Limit  int                 `json:"limit"`
		Offset int                 `json:"offset"`
	}
	decodeInto(t, w, &body)
	assert.Len(t, body.Events, 3)
	assert.Equal(t, 50, body.Limit)
	assert.Equal(t, 0, body.Offset)
}

func TestAuditEndpointFiltersByActor(t *testing.T) {
	store := seededAuditStore(2, "apikey:ops-dashboard")
	store.events = append(store.events, &models.AuditEvent{
		ID:        uuid.New(),
		Actor:     "system",
		Message:   "removed ip block",
		Details:   map[string]any{"event_type": models.AuditEventUnblock},
		CreatedAt: time.Now().UTC(),
	})
	router := newAuditRouter(store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/audit?actor=system", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Events []models.AuditEvent `json:"events"`
		Total  int64               `json:"total"`
		Actor  string              `json:"actor"`
	}
	decodeInto(t, w, &body)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "removed ip block", body.Events[0].Message)
	assert.EqualValues(t, 1, body.Total)
	assert.Equal(t, "system", body.Actor)
}

func TestAuditEndpointClampsPagination(t *testing.T) {
	store := seededAuditStore(1, "system")
	router := newAuditRouter(store)

	// Out-of-range and malformed values fall back to defaults
	for _, query := range []string{"?limit=500", "?limit=0", "?limit=abc", "?offset=-1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/audit"+query, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 50, store.lastLimit)
	assert.Equal(t, 0, store.lastOffset)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/audit?limit=10&offset=20", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, store.lastLimit)
	assert.Equal(t, 20, store.lastOffset)
}

func TestAuditEndpointWithoutPersistence(t *testing.T) {
	router := newAuditRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/audit", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
