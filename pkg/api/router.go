// Package api exposes the messaging core over HTTP: a JSON surface under
// /v1/ and the websocket event channel at /v1/ws.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatrelay/pkg/api/handlers"
	"chatrelay/pkg/delivery"
	"chatrelay/pkg/live"
	"chatrelay/pkg/registry"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "chatrelay_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "method", "status"})

// NewRouter builds the /v1 API router. Identity and rate limiting are
// applied by the gateway middleware wrapped around it in internal/app.
func NewRouter(pipe *delivery.Pipeline, reg *registry.Registry, liveOpts live.Options) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.Register(v1, pipe, reg, liveOpts)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket upgrades hijack the connection; the recorder wrapper
		// would hide http.Hijacker from gorilla/websocket
		if r.URL.Path == "/v1/ws" {
			next.ServeHTTP(w, r)
			return
		}
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		requestDuration.WithLabelValues(route, r.Method, strconv.Itoa(sr.status)).
			Observe(time.Since(start).Seconds())
	})
}
