package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"zip-weather/internal/weather"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	msgInvalidZip          = "Invalid zip code format. Please provide a valid US zip code."
	msgMissingAPIKey       = "Weather API key not configured"
	msgRateLimited         = "Daily API limit reached. Please try again later."
	msgLocationNotFound    = "Location not found. Please check the zip code."
	msgInvalidCredentials  = "Invalid API key. Please check configuration."
	msgProviderUnavailable = "Failed to fetch weather data. Please try again later."
	msgInternal            = "Something went wrong!"
	msgRouteNotFound       = "Route not found"
)

// WeatherService is what the HTTP layer needs from weather.Service.
type WeatherService interface {
	Lookup(ctx context.Context, zipCode string) (*weather.Result, error)
	Usage() weather.Usage
	Snapshot() weather.Usage
}

type Options struct {
	AllowedOrigins []string
	// Registry receives the service metrics; a fresh one is created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	svc     WeatherService
	logger  *slog.Logger
	metrics *metrics
	router  chi.Router
}

func NewServer(svc WeatherService, logger *slog.Logger, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		svc:     svc,
		logger:  logger,
		metrics: newMetrics(reg, svc),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(s.metrics.middleware)
	r.Use(recoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	s.RegisterRoutes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.NotFound(handleRouteNotFound)
	r.MethodNotAllowed(handleRouteNotFound)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", handleHealth)
	r.Get("/weather/{zipCode}", s.handleWeather)
	r.Get("/api-usage", s.handleAPIUsage)
}

type errorResponse struct {
	Error string `json:"error"`
}

type apiUsage struct {
	RequestsUsed      int `json:"requestsUsed"`
	RequestsRemaining int `json:"requestsRemaining"`
	MaxRequests       int `json:"maxRequests"`
}

type weatherResponse struct {
	weather.Payload
	CacheTimestamp *time.Time `json:"cacheTimestamp,omitempty"`
	APIUsage       *apiUsage  `json:"apiUsage,omitempty"`
}

type rateLimitedResponse struct {
	Error string `json:"error"`
	apiUsage
	ResetTime time.Time `json:"resetTime"`
}

type usageResponse struct {
	apiUsage
	ResetTime time.Time `json:"resetTime"`
	CacheSize int       `json:"cacheSize"`
	Status    string    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func setRateLimitHeaders(w http.ResponseWriter, st weather.LimitStatus) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(st.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(st.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(st.ResetAt.Unix(), 10))
}

func usageOf(st weather.LimitStatus) apiUsage {
	return apiUsage{RequestsUsed: st.Used, RequestsRemaining: st.Remaining, MaxRequests: st.Limit}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "message": "Weather API is running"})
}

func handleRouteNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgRouteNotFound)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	zipCode := chi.URLParam(r, "zipCode")

	res, err := s.svc.Lookup(r.Context(), zipCode)
	s.metrics.observeLookup(res, err)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	resp := weatherResponse{Payload: res.Payload}
	if res.Payload.FromCache {
		ts := res.Payload.Timestamp
		resp.CacheTimestamp = &ts
		setRateLimitHeaders(w, s.svc.Snapshot().LimitStatus)
	} else if res.Usage != nil {
		u := usageOf(*res.Usage)
		resp.APIUsage = &u
		setRateLimitHeaders(w, *res.Usage)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	var rle *weather.RateLimitError
	switch {
	case errors.Is(err, weather.ErrInvalidZipCode):
		writeError(w, http.StatusBadRequest, msgInvalidZip)
	case errors.Is(err, weather.ErrMissingAPIKey):
		s.logger.Error("weather lookup without api key")
		writeError(w, http.StatusInternalServerError, msgMissingAPIKey)
	case errors.As(err, &rle):
		setRateLimitHeaders(w, rle.Status)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rle.Status)))
		writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:     msgRateLimited,
			apiUsage:  usageOf(rle.Status),
			ResetTime: rle.Status.ResetAt.UTC(),
		})
	case errors.Is(err, weather.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, msgLocationNotFound)
	case errors.Is(err, weather.ErrInvalidCredentials):
		// 500 rather than 401: the client has no credentials of its own.
		writeError(w, http.StatusInternalServerError, msgInvalidCredentials)
	default:
		writeError(w, http.StatusInternalServerError, msgProviderUnavailable)
	}
}

func (s *Server) handleAPIUsage(w http.ResponseWriter, _ *http.Request) {
	u := s.svc.Usage()
	status := "OK"
	if !u.Allowed {
		status = "RATE_LIMITED"
	}
	setRateLimitHeaders(w, u.LimitStatus)
	writeJSON(w, http.StatusOK, usageResponse{
		apiUsage:  usageOf(u.LimitStatus),
		ResetTime: u.ResetAt.UTC(),
		CacheSize: u.CacheSize,
		Status:    status,
	})
}

// retryAfterSeconds measures from the limiter's own clock reading.
func retryAfterSeconds(st weather.LimitStatus) int {
	return max(1, int(math.Ceil(st.ResetAt.Sub(st.At).Seconds())))
}
