package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEventHandled(t *testing.T) {
	m := NewMetrics()
	m.EventHandled("join-room", "success", time.Millisecond)
	m.EventHandled("join-room", "success", time.Millisecond)
	m.EventHandled("join-room", "error", time.Millisecond)

	if got := testutil.ToFloat64(m.EventCounter.WithLabelValues("join-room", "success")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventCounter.WithLabelValues("join-room", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
}

func TestMetricsGauges(t *testing.T) {
	m := NewMetrics()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetCalls(3)

	if got := testutil.ToFloat64(m.Connections); got != 1 {
		t.Fatalf("connections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CallsActive); got != 3 {
		t.Fatalf("calls = %v, want 3", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.EventHandled("ping", "success", 0)
	m.Dropped("pong")
	m.ConnectionOpened()
	m.Rejected()
	m.Limited()
	m.SetCalls(1)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.Rejected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "relay_connections_rejected_total 1") {
		t.Fatalf("exposition missing counter:\n%s", rec.Body.String())
	}
}
