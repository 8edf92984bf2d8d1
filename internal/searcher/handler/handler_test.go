package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/explainer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/article-search/pkg/errors"
)

type fakeService struct {
	mu       sync.Mutex
	requests []executor.Request
	enhances bool
	err      error
}

func (f *fakeService) Search(_ context.Context, req executor.Request) (*executor.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	resp := &executor.Response{
		Articles:        []corpus.Article{{ID: "a1", Title: "Red Sea Crisis"}},
		Total:           1,
		Matches:         []explainer.Explanation{{ArticleID: "a1", Score: 23, Reasons: []string{"title:exact"}}},
		EnhancerOutcome: executor.OutcomeSkipped,
		Terms:           []string{"red", "sea"},
	}
	if req.UseAI && f.enhances {
		resp.EnhancedQuery = "red sea shipping"
		resp.QueryContext = "maritime trade"
		resp.RelatedTerms = []string{"suez"}
		resp.EnhancerOutcome = "enhanced"
	}
	return resp, nil
}

func (f *fakeService) EnhancementEnabled() bool { return f.enhances }

func (f *fakeService) last() executor.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordingTracker struct {
	events []analytics.SearchEvent
}

func (r *recordingTracker) Track(e analytics.SearchEvent) { r.events = append(r.events, e) }

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = map[string]string{}
	return n, nil
}

var searchCfg = config.SearchConfig{DefaultLimit: 10, MaxResults: 50}

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearch_ParsesParameters(t *testing.T) {
	tests := []struct {
		query string
		want  executor.Request
	}{
		{"q=red+sea", executor.Request{Query: "red sea", Limit: 10, UseAI: true}},
		{"q=red&limit=5&offset=20&useAI=false", executor.Request{Query: "red", Limit: 5, Offset: 20}},
		{"q=red&limit=500", executor.Request{Query: "red", Limit: 50, UseAI: true}},
		{"q=red&limit=-3&offset=-1", executor.Request{Query: "red", Limit: 10, UseAI: true}},
		{"q=red&limit=abc&offset=xyz&useAI=maybe", executor.Request{Query: "red", Limit: 10, UseAI: true}},
		{"q=red&limit=0&useAI=0", executor.Request{Query: "red", Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &fakeService{}
			rec := get(t, New(svc, searchCfg).Search, "/api/v1/search?"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, svc.last())
		})
	}
}

func TestSearch_ResponseShape(t *testing.T) {
	svc := &fakeService{enhances: true}
	rec := get(t, New(svc, searchCfg).Search, "/api/v1/search?q=red+sea")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"articles", "total", "enhancedQuery", "queryContext", "relatedTerms", "matches", "processingTime"} {
		assert.Contains(t, body, key)
	}
	assert.NotContains(t, body, "EnhancerOutcome")
	assert.JSONEq(t, `"red sea shipping"`, string(body["enhancedQuery"]))
}

func TestSearch_OmitsEnhancementFieldsWhenAbsent(t *testing.T) {
	rec := get(t, New(&fakeService{}, searchCfg).Search, "/api/v1/search?q=red&useAI=false")

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "enhancedQuery")
	assert.NotContains(t, body, "queryContext")
	assert.NotContains(t, body, "relatedTerms")
}

func TestSearch_CorpusErrorIs503(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("reading articles: %w", apperrors.ErrCorpusUnavailable)}
	rec := get(t, New(svc, searchCfg).Search, "/api/v1/search?q=red")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"search failed"}`, rec.Body.String())
}

func TestSearch_CachesDeterministicResponses(t *testing.T) {
	svc := &fakeService{}
	qc := cache.New(&memStore{data: map[string]string{}}, time.Minute, nil)
	tracker := &recordingTracker{}
	h := New(svc, searchCfg, WithCache(qc), WithTracker(tracker))

	get(t, h.Search, "/api/v1/search?q=Red+Sea")
	rec := get(t, h.Search, "/api/v1/search?q=red+sea")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.requests, 1)
	require.Len(t, tracker.events, 2)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[1].CacheHit)
	assert.Equal(t, "red sea", tracker.events[1].Query)
	assert.Equal(t, []string{"red", "sea"}, tracker.events[1].Terms)
	assert.Equal(t, "disabled", tracker.events[1].EnhancerOutcome)
}

func TestSearch_EnhancedSearchesBypassCache(t *testing.T) {
	svc := &fakeService{enhances: true}
	qc := cache.New(&memStore{data: map[string]string{}}, time.Minute, nil)
	h := New(svc, searchCfg, WithCache(qc))

	get(t, h.Search, "/api/v1/search?q=red")
	get(t, h.Search, "/api/v1/search?q=red")
	assert.Len(t, svc.requests, 2)

	get(t, h.Search, "/api/v1/search?q=red&useAI=false")
	get(t, h.Search, "/api/v1/search?q=red&useAI=false")
	assert.Len(t, svc.requests, 3)
}

func TestSearch_TracksEvent(t *testing.T) {
	tracker := &recordingTracker{}
	h := New(&fakeService{}, searchCfg, WithTracker(tracker), WithTracing(1))

	get(t, h.Search, "/api/v1/search?q=Red+Sea&limit=5&offset=5&useAI=false")

	require.Len(t, tracker.events, 1)
	e := tracker.events[0]
	assert.Equal(t, analytics.EventSearch, e.Type)
	assert.Equal(t, "red sea", e.Query)
	assert.Equal(t, 1, e.Total)
	assert.Equal(t, 1, e.Returned)
	assert.Equal(t, 5, e.Limit)
	assert.Equal(t, 5, e.Offset)
	assert.False(t, e.UseAI)
	assert.Equal(t, executor.OutcomeSkipped, e.EnhancerOutcome)
}

func TestCacheEndpoints(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := New(&fakeService{}, searchCfg)
		assert.JSONEq(t, `{"status":"disabled"}`, get(t, h.CacheStats, "/api/v1/cache/stats").Body.String())
		rec := httptest.NewRecorder()
		h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		store := &memStore{data: map[string]string{}}
		h := New(&fakeService{}, searchCfg, WithCache(cache.New(store, time.Minute, nil)))
		get(t, h.Search, "/api/v1/search?q=red&useAI=false")
		get(t, h.Search, "/api/v1/search?q=red&useAI=false")

		stats := get(t, h.CacheStats, "/api/v1/cache/stats")
		assert.JSONEq(t, `{"hits":1,"misses":1,"total":2,"hit_rate":"50.0%"}`, stats.Body.String())

		rec := httptest.NewRecorder()
		h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", strings.NewReader("")))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"invalidated","keys_deleted":1}`, rec.Body.String())
		assert.Empty(t, store.data)
	})
}
