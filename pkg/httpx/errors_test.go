package httpx_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	httpx.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp httpx.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	httpx.WriteErrorWithDetails(w, 400, "test_error", "Test message", "Additional details")

	assert.Equal(t, 400, w.Code)

	var resp httpx.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "Additional details", resp.Details)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	httpx.WriteJSON(w, 201, map[string]string{"id": "abc"})

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"abc"}`, w.Body.String())
}

func TestWriteTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()

	httpx.WriteTooManyRequests(w, "rate_limit_exceeded", "Too many requests")

	assert.Equal(t, 429, w.Code)

	var resp httpx.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
}

func TestCommonErrorWriters(t *testing.T) {
	cases := []struct {
		name     string
		write    func(w *httptest.ResponseRecorder)
		code     int
		errorVal string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { httpx.WriteBadRequest(w, "m") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { httpx.WriteUnauthorized(w, "m") }, 401, "unauthorized"},
		{"forbidden", func(w *httptest.ResponseRecorder) { httpx.WriteForbidden(w, "m") }, 403, "forbidden"},
		{"not found", func(w *httptest.ResponseRecorder) { httpx.WriteNotFound(w, "m") }, 404, "not_found"},
		{"internal", func(w *httptest.ResponseRecorder) { httpx.WriteInternalError(w, "m") }, 500, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.write(w)

			assert.Equal(t, tc.code, w.Code)

			var resp httpx.ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			assert.Equal(t, tc.errorVal, resp.Error)
		})
	}
}
