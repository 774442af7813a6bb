package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRouterHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestRouterExposesCollectors(t *testing.T) {
	MustRegister()
	MustRegister()
	IncTransition("start", "awaiting_amount")
	ObserveInvoice(true, 120*time.Millisecond)

	rr := httptest.NewRecorder()
	Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		`flow_transitions_total{from="start",to="awaiting_amount"}`,
		`payments_invoices_total{status="created"}`,
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}
