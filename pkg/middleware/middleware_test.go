package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPrometheusRecordsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	h := Prometheus(WithRegistry(registry), WithNamespace("test"))(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := map[string]bool{}
	for _, mf := range families {
		byName[mf.GetName()] = true
		if mf.GetName() == "test_http_requests_total" {
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 3 {
				t.Errorf("requests_total = %v, want 3", got)
			}
		}
	}
	for _, want := range []string{
		"test_http_requests_total",
		"test_http_request_duration_seconds",
		"test_http_requests_in_flight",
	} {
		if !byName[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestPrometheusStatusLabel(t *testing.T) {
	registry := prometheus.NewRegistry()
	h := Prometheus(WithRegistry(registry), WithNamespace("label"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "label_http_requests_total" {
			continue
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "status" && lp.GetValue() != "404" {
				t.Errorf("status label = %q, want 404", lp.GetValue())
			}
		}
		return
	}
	t.Fatal("requests_total not found")
}

func TestOpenTelemetryPassthrough(t *testing.T) {
	h := OpenTelemetry()(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestOpenTelemetryFilter(t *testing.T) {
	called := false
	h := OpenTelemetry(WithRequestFilter(func(r *http.Request) bool {
		return false
	}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if !called {
		t.Error("filtered request did not reach the handler")
	}
}
