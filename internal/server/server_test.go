package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jzx17/roundrobin/pkg/scheduler"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStatus scheduler.Status

func (f fixedStatus) Status() scheduler.Status { return scheduler.Status(f) }

func testServer(t *testing.T, status StatusSource) (*Server, *prom.Registry) {
	t.Helper()
	reg := prom.NewRegistry()
	counter := prom.NewCounter(prom.CounterOpts{Name: "rrsched_test_total", Help: "test counter"})
	require.NoError(t, reg.Register(counter))
	counter.Add(3)
	return New(reg, status, nil), reg
}

func TestHealth(t *testing.T) {
	current := 1
	srv, _ := testServer(t, fixedStatus{RunID: "run-1", State: "running", Workers: 3, Completed: 1, Current: &current})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
	require.NotNil(t, resp.Scheduler)
	assert.Equal(t, "run-1", resp.Scheduler.RunID)
	assert.Equal(t, 3, resp.Scheduler.Workers)
	require.NotNil(t, resp.Scheduler.Current)
	assert.Equal(t, 1, *resp.Scheduler.Current)
}

func TestHealth_NoScheduler(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Scheduler)
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rrsched_test_total 3")
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListenAndServe(t *testing.T) {
	srv, _ := testServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", ready) }()

	var addr string
	select {
	case addr = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "rrsched_test_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_BadAddr(t *testing.T) {
	srv, _ := testServer(t, nil)
	err := srv.ListenAndServe(context.Background(), "256.0.0.1:bad", nil)
	assert.Error(t, err)
}
