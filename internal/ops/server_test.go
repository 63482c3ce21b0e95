package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dealfeed-collector/internal/metrics"
	"github.com/JakeFAU/dealfeed-collector/internal/pipeline"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)
	s.SetReady(true)
	require.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.ObserveRecord()
	rec := serve(t, NewServer(nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "collector_records_total")
}

func TestLatestRun(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	require.Equal(t, http.StatusNotFound, serve(t, s, "/v1/runs/latest").Code)

	finished := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.RecordRun(pipeline.Summary{RunID: "run-1", Scanned: 10, Produced: 3, Captchas: 2}, finished, errors.New("feed closed"))

	rec := serve(t, s, "/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var report RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 10, report.Scanned)
	assert.Equal(t, 3, report.Produced)
	assert.Equal(t, 2, report.Captchas)
	assert.Equal(t, "feed closed", report.Error)
	assert.True(t, finished.Equal(report.FinishedAt))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	s.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := serve(t, s, "/boom")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := NewServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
