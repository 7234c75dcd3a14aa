package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAction("MOVE", "")
	m.ObserveFlush(time.Millisecond)
	m.ObserveDelivery("ok")
	m.ObserveTrade("SETTLED")
	m.ObserveDisclosure(true)
	m.SetWorldSize(1, 2)
	m.ConnectionOpened()
	m.ConnectionClosed()
	if m.Registry() != nil {
		t.Fatalf("nil metrics returned a registry")
	}
}

func TestMetrics_CountsAndExposes(t *testing.T) {
	m := New()
	m.ObserveAction("TELL", "")
	m.ObserveAction("TELL", "")
	m.ObserveAction("TELL", "E_INVALID_TARGET")
	m.ObserveTrade("SETTLED")
	m.ObserveDisclosure(false)
	m.SetWorldSize(3, 12)

	if got := testutil.ToFloat64(m.actions.WithLabelValues("TELL", "")); got != 2 {
		t.Fatalf("ok TELL count=%v", got)
	}
	if got := testutil.ToFloat64(m.facts); got != 12 {
		t.Fatalf("facts gauge=%v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`hearsay_actions_total{code="E_INVALID_TARGET",type="TELL"} 1`,
		`hearsay_trades_total{status="SETTLED"} 1`,
		`hearsay_disclosures_total{kind="narrowed"} 1`,
		`hearsay_agents 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %q", want)
		}
	}
}
