package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", 200, time.Millisecond)
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ObserveJob("expire_coupons", "light", "success", time.Second)
	m.IncIngestShop("Payback", "ok")
	m.AddIngestRates("Payback", "changed", 2)
	m.IncProposal("rate_change", "approved")
	m.ObserveEvaluation("shopping", time.Millisecond)
	if m.Handler() == nil {
		t.Fatalf("expected a handler even when metrics are disabled")
	}
}

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.AddIngestRates("Payback", "changed", 3)
	m.AddIngestRates("Payback", "changed", 0)
	m.IncProposal("rate_change", "approved")
	m.ObserveAPI("POST", "/evaluate", 200, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.ingestRates.WithLabelValues("Payback", "changed")); got != 3 {
		t.Fatalf("ingest rates: expected 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.proposals.WithLabelValues("rate_change", "approved")); got != 1 {
		t.Fatalf("proposals: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("POST", "/evaluate", "200")); got != 1 {
		t.Fatalf("api requests: expected 1, got %v", got)
	}
}
