package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveAuthDecision("allowed", 10*time.Millisecond)
	m.ObserveAuthDecision("denied", 5*time.Millisecond)
	m.TokensIssuedTotal.Inc()

	if got := testutil.ToFloat64(m.AuthDecisionsTotal.WithLabelValues("allowed")); got != 1 {
		t.Errorf("Expected 1 allowed decision, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthDecisionsTotal.WithLabelValues("denied")); got != 1 {
		t.Errorf("Expected 1 denied decision, got %v", got)
	}
	if got := testutil.ToFloat64(m.TokensIssuedTotal); got != 1 {
		t.Errorf("Expected 1 token issued, got %v", got)
	}
}

func TestMetrics_BusCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.BusMessagesTotal.WithLabelValues("deployments.updated", "acked").Inc()
	m.BusMessagesTotal.WithLabelValues("deployments.updated", "unacked").Inc()
	m.BusRedeliveriesTotal.WithLabelValues("deployments.updated").Inc()

	if got := testutil.ToFloat64(m.BusMessagesTotal.WithLabelValues("deployments.updated", "acked")); got != 1 {
		t.Errorf("Expected 1 acked message, got %v", got)
	}
	if got := testutil.ToFloat64(m.BusRedeliveriesTotal.WithLabelValues("deployments.updated")); got != 1 {
		t.Errorf("Expected 1 redelivery, got %v", got)
	}
}

func TestMetricsHandler_Exposition(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.ObserveCommanderCall("success", 200*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "conductor_commander_calls_total") {
		t.Error("Expected commander call counter in exposition")
	}
	if !strings.Contains(body, "conductor_auth_decisions_total") {
		t.Error("Expected auth decision counter in exposition")
	}
}
