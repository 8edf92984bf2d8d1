// Package handler serves the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/normalizer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/article-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/tracing"
)

type SearchService interface {
	Search(ctx context.Context, req executor.Request) (*executor.Response, error)
	EnhancementEnabled() bool
}

// Tracker receives one event per served search.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	*executor.Response
	ProcessingTime int64 `json:"processingTime"`
}

type Handler struct {
	service      SearchService
	cache        *cache.QueryCache
	tracker      Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	traceRate    float64
	logger       *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithTracker(t Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracing logs a span tree for roughly rate (0..1) of searches.
func WithTracing(rate float64) Option {
	return func(h *Handler) { h.traceRate = rate }
}

func New(service SearchService, cfg config.SearchConfig, opts ...Option) *Handler {
	h := &Handler{
		service:      service,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Search serves GET /api/v1/search?q=&limit=&offset=&useAI=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req := h.parseRequest(r)
	if h.traceRate > 0 && tracing.ShouldSample(h.traceRate) {
		var span *tracing.Span
		ctx, span = tracing.StartSpan(ctx, "http.search", middleware.GetRequestID(ctx))
		defer func() {
			span.End()
			span.Log()
		}()
	}

	var (
		resp     *executor.Response
		err      error
		cacheHit bool
	)
	cacheStatus := "bypass"
	if h.cacheable(req) {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.Response, error) {
			return h.service.Search(ctx, req)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		resp, err = h.service.Search(ctx, req)
	}
	elapsed := time.Since(start)

	if err != nil {
		log.Error("search execution failed", "query", req.Query, "error", err)
		h.metrics.ObserveSearch("error", cacheStatus, elapsed.Seconds(), 0)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	if cacheHit {
		resp.EnhancerOutcome = cachedOutcome(req)
		resp.Terms = normalizer.Normalize(req.Query).Terms
	}
	h.metrics.ObserveSearch(resultType(req, resp), cacheStatus, elapsed.Seconds(), resp.Total)

	log.Info("search completed",
		"query", req.Query,
		"total", resp.Total,
		"returned", len(resp.Articles),
		"cache", cacheStatus,
		"enhancer", resp.EnhancerOutcome,
		"latency_ms", elapsed.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:            analytics.EventSearch,
			Query:           normalizer.Normalize(req.Query).Text,
			Terms:           resp.Terms,
			Total:           resp.Total,
			Returned:        len(resp.Articles),
			Offset:          req.Offset,
			Limit:           req.Limit,
			LatencyMs:       elapsed.Milliseconds(),
			CacheHit:        cacheHit,
			UseAI:           req.UseAI,
			EnhancerOutcome: resp.EnhancerOutcome,
			Timestamp:       time.Now().UTC(),
			RequestID:       middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Response:       resp,
		ProcessingTime: elapsed.Milliseconds(),
	})
}

// parseRequest reads the query string. Missing, malformed or negative
// limit and offset values fall back to their defaults rather than failing
// the request; limit is capped at maxResults.
func (h *Handler) parseRequest(r *http.Request) executor.Request {
	q := r.URL.Query()
	req := executor.Request{
		Query: q.Get("q"),
		Limit: h.defaultLimit,
		UseAI: true,
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		req.Limit = n
	}
	if h.maxResults > 0 && req.Limit > h.maxResults {
		req.Limit = h.maxResults
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		req.Offset = n
	}
	if b, err := strconv.ParseBool(q.Get("useAI")); err == nil {
		req.UseAI = b
	}
	return req
}

// cacheable reports whether the response depends only on the request and
// the corpus. Enhanced responses are not cached.
func (h *Handler) cacheable(req executor.Request) bool {
	if h.cache == nil {
		return false
	}
	if normalizer.Normalize(req.Query).IsEmpty() {
		return false
	}
	return !req.UseAI || !h.service.EnhancementEnabled()
}

func cachedOutcome(req executor.Request) string {
	if req.UseAI {
		return "disabled"
	}
	return executor.OutcomeSkipped
}

func resultType(req executor.Request, resp *executor.Response) string {
	switch {
	case normalizer.Normalize(req.Query).IsEmpty():
		return "empty_query"
	case resp.Total == 0:
		return "zero_result"
	default:
		return "hit"
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.metrics.CacheInvalidated("api")

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
