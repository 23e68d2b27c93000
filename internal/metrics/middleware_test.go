package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/v1/domains/{domainID}/slots", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"active":0}`))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/domains/42/slots", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/domains/{domainID}/slots", "200"))
	if val < 1 {
		t.Errorf("expected http_requests_total >= 1 for the route pattern, got %f", val)
	}
	bytes := testutil.ToFloat64(httpResponseBytes.WithLabelValues("GET", "/api/v1/domains/{domainID}/slots"))
	if bytes < float64(len(`{"active":0}`)) {
		t.Errorf("expected response bytes to be counted, got %f", bytes)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.WriteHeader(http.StatusOK) // second call must not override the recorded status
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/runs", http.NoBody))

	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/runs", "429"))
	if val < 1 {
		t.Errorf("expected 429 to be recorded, got %f", val)
	}
}

func TestMiddleware_PreservesFlusher(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	var flushable bool
	r.Get("/stream", func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
		_, _ = w.Write([]byte("event: progress\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/stream", http.NoBody))

	if !flushable {
		t.Fatal("wrapped writer should implement http.Flusher")
	}
	if !rr.Flushed {
		t.Error("expected the recorder to be flushed")
	}
}

func TestRouteLabel(t *testing.T) {
	if got := routeLabel(""); got != "unknown" {
		t.Errorf("routeLabel(\"\") = %q", got)
	}
	if got := routeLabel("/health"); got != "/health" {
		t.Errorf("routeLabel(/health) = %q", got)
	}
}

func TestRegisterFuncsAreIdempotent(t *testing.T) {
	RegisterQueryMetrics()
	RegisterQueryMetrics()
	RegisterRunMetrics()
	RegisterRunMetrics()

	TasksTotal.WithLabelValues("chatgpt", "ok").Inc()
	if got := testutil.ToFloat64(TasksTotal.WithLabelValues("chatgpt", "ok")); got < 1 {
		t.Errorf("tasks_total = %f", got)
	}
}
