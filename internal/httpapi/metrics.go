package httpapi

import (
	"net/http"
	"strconv"

	"zip-weather/internal/weather"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	lookups  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, svc WeatherService) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zip_weather_http_requests_total",
				Help: "Total HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zip_weather_lookups_total",
				Help: "Weather lookups by outcome and source.",
			},
			[]string{"outcome", "source"},
		),
	}

	reg.MustRegister(
		m.requests,
		m.lookups,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "zip_weather_provider_requests_used",
			Help: "Provider calls made in the current window.",
		}, func() float64 { return float64(svc.Snapshot().Used) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "zip_weather_provider_requests_remaining",
			Help: "Provider calls left in the current window.",
		}, func() float64 { return float64(svc.Snapshot().Remaining) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "zip_weather_cache_entries",
			Help: "Entries held by the response cache, expired ones included.",
		}, func() float64 { return float64(svc.Snapshot().CacheSize) }),
	)
	return m
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

func (m *metrics) observeLookup(res *weather.Result, err error) {
	source := "provider"
	switch {
	case err != nil:
		source = "none"
	case res.Payload.FromCache:
		source = "cache"
	}
	m.lookups.WithLabelValues(weather.Outcome(err), source).Inc()
}
