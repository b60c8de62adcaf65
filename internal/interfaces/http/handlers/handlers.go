// Package handlers implements the HTTP endpoint handlers for the scoring
// API. Handlers decode request contracts, delegate to the application
// service, and write envelope responses.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/cache"
	httpContracts "github.com/beargallbladder/fleetapitest-sub000/internal/http"
	"github.com/beargallbladder/fleetapitest-sub000/internal/metrics"
	"github.com/beargallbladder/fleetapitest-sub000/internal/persistence"
)

// maxFleetBatch bounds one POST /fleet request. Larger fleets should be
// split client-side; the limit keeps a single request from monopolizing
// the worker pool.
const maxFleetBatch = 5000

// Handlers manages all HTTP endpoint handlers.
type Handlers struct {
	service  *application.Service
	health   persistence.LedgerHealth
	metrics  *metrics.Metrics
	cache    cache.Cache
	cacheTTL time.Duration
	hub      *Hub
	start    time.Time
	version  string
}

// Options carries the handler dependencies. Service is required; the rest
// degrade gracefully when nil.
type Options struct {
	Service  *application.Service
	Health   persistence.LedgerHealth
	Metrics  *metrics.Metrics
	Cache    cache.Cache
	CacheTTL time.Duration
	Hub      *Hub
	Version  string
}

// NewHandlers creates a new handlers instance.
func NewHandlers(opts Options) *Handlers {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Handlers{
		service:  opts.Service,
		health:   opts.Health,
		metrics:  opts.Metrics,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		hub:      opts.Hub,
		start:    time.Now(),
		version:  version,
	}
}

// writeJSON writes JSON response with proper error handling.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Fallback error response
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes standardized error response.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := r.Context().Value("request_id")
	if requestID == nil {
		requestID = "unknown"
	}

	errorResp := httpContracts.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID.(string),
		Timestamp: time.Now().UTC(),
	}

	h.writeJSON(w, status, errorResp)
}

// envelope wraps a result with the engine name and elapsed time.
func (h *Handlers) envelope(result interface{}, elapsed time.Duration) httpContracts.Envelope {
	return httpContracts.Envelope{
		Success:  true,
		Engine:   h.service.BackendName(),
		Result:   result,
		TimingMS: float64(elapsed.Microseconds()) / 1000.0,
	}
}

// cachedResponse replays a cached envelope body verbatim.
func (h *Handlers) cachedResponse(w http.ResponseWriter, key, cacheType string) bool {
	if h.cache == nil {
		return false
	}
	body, ok := h.cache.Get(key)
	if !ok {
		if h.metrics != nil {
			h.metrics.RecordCacheMiss(cacheType)
		}
		return false
	}
	if h.metrics != nil {
		h.metrics.RecordCacheHit(cacheType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return true
}

// storeResponse caches a marshaled envelope and writes it to the client.
func (h *Handlers) storeResponse(w http.ResponseWriter, key string, env httpContracts.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
		return
	}
	if h.cache != nil {
		h.cache.Set(key, body, h.cacheTTL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// broadcast pushes a live feed event when the hub is wired.
func (h *Handlers) broadcast(eventType string, data interface{}) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(httpContracts.LiveEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// pathVar reads a gorilla route variable.
func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// NotFound handles 404 responses.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// TooManyRequests handles rate limited requests.
func (h *Handlers) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	h.writeError(w, r, http.StatusTooManyRequests, "rate_limited",
		"Request rate limit exceeded, retry shortly")
}
