package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/explainer"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	getErr  error
	flushed int
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	s.flushed++
	return n, nil
}

func sampleResponse() *executor.Response {
	return &executor.Response{
		Articles: []corpus.Article{{ID: "a1", Title: "Red Sea Crisis"}},
		Total:    1,
		Matches:  []explainer.Explanation{{ArticleID: "a1", Score: 40, Reasons: []string{"title:exact"}}},
	}
}

func TestGetOrCompute_CachesResult(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	req := executor.Request{Query: "Red Sea", Limit: 10}
	calls := 0
	compute := func() (*executor.Response, error) {
		calls++
		return sampleResponse(), nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), req, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.GetOrCompute(context.Background(), executor.Request{Query: "  red sea ", Limit: 10}, compute)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Articles, second.Articles)
	assert.Equal(t, first.Matches, second.Matches)
	assert.Equal(t, time.Minute, store.ttls[BuildKey(req)])
	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	req := executor.Request{Query: "red sea", Limit: 10}

	_, _, err := c.GetOrCompute(context.Background(), req, func() (*executor.Response, error) {
		return nil, errors.New("corpus down")
	})
	require.Error(t, err)

	resp, hit, err := c.GetOrCompute(context.Background(), req, func() (*executor.Response, error) {
		return sampleResponse(), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, resp.Total)
}

func TestGetOrCompute_CollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	req := executor.Request{Query: "red sea", Limit: 10}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), req, func() (*executor.Response, error) {
				calls.Add(1)
				<-release
				return sampleResponse(), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestGet_StoreErrorIsMiss(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), executor.Request{Query: "red sea"})
	assert.False(t, ok)
}

func TestBuildKey(t *testing.T) {
	base := executor.Request{Query: "Red Sea", Limit: 10, Offset: 0, UseAI: false}
	assert.Equal(t, BuildKey(base), BuildKey(executor.Request{Query: " red sea ", Limit: 10}))
	assert.True(t, strings.HasPrefix(BuildKey(base), keyPrefix))

	for _, other := range []executor.Request{
		{Query: "Red Sea", Limit: 20},
		{Query: "Red Sea", Limit: 10, Offset: 10},
		{Query: "Red Sea", Limit: 10, UseAI: true},
		{Query: "Red", Limit: 10},
	} {
		assert.NotEqual(t, BuildKey(base), BuildKey(other), "%+v", other)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	c.Set(context.Background(), executor.Request{Query: "a"}, sampleResponse())
	c.Set(context.Background(), executor.Request{Query: "b"}, sampleResponse())
	store.data["unrelated"] = "keep"

	deleted, err := c.Invalidate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, map[string]string{"unrelated": "keep"}, store.data)
}

func TestInvalidationHandler(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	c.Set(context.Background(), executor.Request{Query: "a"}, sampleResponse())
	h := InvalidationHandler(c, nil)

	require.NoError(t, h(context.Background(), []byte("a1"), []byte(`{"articleId":"a1","action":"published"}`)))
	require.NoError(t, h(context.Background(), nil, []byte("garbage")))

	assert.Equal(t, 2, store.flushed)
	assert.Empty(t, store.data)
}
