package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	if c.Path() != "/metrics" {
		t.Errorf("expected path /metrics, got %q", c.Path())
	}
	if c.Registry() == nil {
		t.Fatal("expected a registry")
	}
}

func TestCollector_ObserveOperation(t *testing.T) {
	c := NewWithConfig(Config{Namespace: "test"})

	c.ObserveOperation("read", OutcomeSuccess, 5*time.Millisecond)
	c.ObserveOperation("read", OutcomeSuccess, 7*time.Millisecond)
	c.ObserveOperation("read", "NotConnectedError", time.Millisecond)

	if got := testutil.ToFloat64(c.Operations.WithLabelValues("read", OutcomeSuccess)); got != 2 {
		t.Errorf("expected 2 successful reads, got %v", got)
	}
	if got := testutil.ToFloat64(c.Operations.WithLabelValues("read", "NotConnectedError")); got != 1 {
		t.Errorf("expected 1 failed read, got %v", got)
	}
	if n := testutil.CollectAndCount(c.OperationDuration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestCollector_SessionChanged(t *testing.T) {
	c := NewWithConfig(Config{Namespace: "test"})

	c.SessionChanged(true)
	c.SessionChanged(true)
	if got := testutil.ToFloat64(c.SessionActive); got != 1 {
		t.Errorf("expected session_active 1, got %v", got)
	}
	c.SessionChanged(false)
	if got := testutil.ToFloat64(c.SessionActive); got != 0 {
		t.Errorf("expected session_active 0, got %v", got)
	}
	if got := testutil.ToFloat64(c.SessionConnects); got != 2 {
		t.Errorf("expected 2 connects, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveOperation("create", OutcomeSuccess, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"mongo_mcp_operations_total",
		"mongo_mcp_operation_duration_seconds",
		"mongo_mcp_session_active",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected metrics output to contain %s", name)
		}
	}
}

func TestCollector_NewServerRoutesPath(t *testing.T) {
	c := NewWithConfig(Config{Namespace: "test", Path: "/prom"})
	srv := c.NewServer("127.0.0.1:0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prom", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on /prom, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on /metrics, got %d", rec.Code)
	}
}
