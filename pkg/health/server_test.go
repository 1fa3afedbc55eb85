package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpad-hq/txflow/pkg/circuitbreaker"
	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/models"
	"github.com/launchpad-hq/txflow/pkg/orchestrator"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	return p.err
}

type fakeRuns struct {
	snapshots []models.RunSnapshot
	cancelErr map[string]error
	cancelled []string
}

func (r *fakeRuns) ActiveRuns() []models.RunSnapshot {
	return r.snapshots
}

func (r *fakeRuns) Get(string) (*orchestrator.Run, bool) {
	return nil, false
}

func (r *fakeRuns) Cancel(id string) error {
	if err, ok := r.cancelErr[id]; ok {
		return err
	}
	r.cancelled = append(r.cancelled, id)
	return nil
}

func newTestServer(pingErr error, apiKey string) (*Server, *fakeRuns, *circuitbreaker.CircuitBreaker) {
	runs := &fakeRuns{
		snapshots: []models.RunSnapshot{
			{ID: "run_0000aaaa", Phase: models.PhaseCheckingAllowance, StartedAt: time.Unix(100, 0)},
			{ID: "run_0000bbbb", Phase: models.PhaseAwaitingActionConfirmation, StartedAt: time.Unix(200, 0)},
		},
		cancelErr: map[string]error{
			"run_0000bbbb": orchestrator.ErrNotCancellable,
			"run_missing":  fmt.Errorf("%w: run_missing", orchestrator.ErrRunNotFound),
		},
	}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{Enabled: true, Threshold: 1, Window: time.Minute, ResetTimeout: time.Minute})
	s := NewServer("0", &fakePinger{err: pingErr}, runs, breaker, apiKey, &logger.EmptyLogger{})
	return s, runs, breaker
}

func serve(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	s, _, _ := newTestServer(nil, "")

	rec := serve(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _, _ := newTestServer(errors.New("dial tcp: connection refused"), "")
	rec = serve(down, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRuns(t *testing.T) {
	s, runs, _ := newTestServer(nil, "")

	rec := serve(s, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.RunSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "run_0000aaaa", listed[0].ID)

	rec = serve(s, http.MethodGet, "/runs/run_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tests := []struct {
		id   string
		code int
	}{
		{"run_0000aaaa", http.StatusAccepted},
		{"run_0000bbbb", http.StatusConflict},
		{"run_missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run("cancel "+tt.id, func(t *testing.T) {
			rec := serve(s, http.MethodPost, "/runs/"+tt.id+"/cancel", nil)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Equal(t, []string{"run_0000aaaa"}, runs.cancelled)
}

func TestCircuitReset(t *testing.T) {
	s, _, breaker := newTestServer(nil, "")
	breaker.RecordFailure()
	require.True(t, breaker.IsOpen())

	rec := serve(s, http.MethodGet, "/circuit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"open"`)

	rec = serve(s, http.MethodGet, "/circuit/reset", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(s, http.MethodPost, "/circuit/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, breaker.IsOpen())
}

func TestMetricsAuth(t *testing.T) {
	open, _, _ := newTestServer(nil, "")
	rec := serve(open, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s, _, _ := newTestServer(nil, "secret")
	tests := []struct {
		name   string
		header map[string]string
		code   int
	}{
		{"missing header", nil, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"wrong key", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid key", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, http.MethodGet, "/metrics", tt.header)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
