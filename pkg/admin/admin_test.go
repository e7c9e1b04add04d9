package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type fakeHealth struct {
	listeners   int
	subscribers int
}

func (f fakeHealth) ListenersActive() int      { return f.listeners }
func (f fakeHealth) SubscribersConnected() int { return f.subscribers }

func TestHealthzReportsCounts(t *testing.T) {
	s := &Server{health: fakeHealth{listeners: 3, subscribers: 2}}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)

	var body healthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ListenersActive != 3 || body.SubscribersConnected != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMetricsHandlerServesOnMuxRoute(t *testing.T) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
