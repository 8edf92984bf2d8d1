// Package executor runs the search pipeline: normalize the query, optionally
// enhance it, score every published article, rank, paginate and explain.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/explainer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/normalizer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/article-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/tracing"
)

// OutcomeSkipped is reported when the caller opted out of enhancement or
// the query was empty.
const OutcomeSkipped = "skipped"

// minChunk is the smallest slice of the corpus handed to one pool worker.
const minChunk = 64

var errSkipped = errors.New("enhancement not requested")

// Request is one search. Limit and Offset must already be clamped by the
// caller.
type Request struct {
	Query  string
	Limit  int
	Offset int
	UseAI  bool
}

// Response is the ranked page plus the enhancement that produced it.
type Response struct {
	Articles      []corpus.Article        `json:"articles"`
	Total         int                     `json:"total"`
	EnhancedQuery string                  `json:"enhancedQuery,omitempty"`
	QueryContext  string                  `json:"queryContext,omitempty"`
	RelatedTerms  []string                `json:"relatedTerms,omitempty"`
	Matches       []explainer.Explanation `json:"matches"`

	// EnhancerOutcome names how enhancement went; see enhancer.Outcome.
	EnhancerOutcome string `json:"-"`
	// Terms are the literal terms the articles were scored against.
	Terms []string `json:"-"`
}

type scoreFunc func(q scorer.Query, a corpus.Article, categoryName string, now time.Time) scorer.Candidate

type Executor struct {
	provider corpus.Provider
	enhancer enhancer.Enhancer
	score    scoreFunc
	cfg      config.SearchConfig
	pool     *ants.Pool
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Executor)

// WithMetrics records enhancer, scoring and corpus metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithClock replaces time.Now as the reference time for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New builds an executor reading articles from provider. A nil enhancer
// behaves like enhancer.Disabled. When cfg.WorkerPoolSize is positive,
// large corpora are scored on a shared ants pool released by Close.
func New(
	provider corpus.Provider,
	enh enhancer.Enhancer,
	cfg config.SearchConfig,
	weights config.RankingConfig,
	opts ...Option,
) (*Executor, error) {
	if enh == nil {
		enh = enhancer.Disabled{}
	}
	e := &Executor{
		provider: provider,
		enhancer: enh,
		score:    scorer.New(weights).Score,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.WorkerPoolSize > 0 {
		pool, err := ants.NewPool(cfg.WorkerPoolSize)
		if err != nil {
			return nil, fmt.Errorf("creating scoring pool: %w", err)
		}
		e.pool = pool
	}
	return e, nil
}

// Close releases the scoring pool.
func (e *Executor) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// EnhancementEnabled reports whether Search can ever consult the enhancer.
// When false, responses depend only on the request and the corpus.
func (e *Executor) EnhancementEnabled() bool {
	_, disabled := e.enhancer.(enhancer.Disabled)
	return !disabled
}

// Search runs req against the current corpus. The only error it returns
// wraps errors.ErrCorpusUnavailable; enhancer failures and per-article
// scoring faults degrade the result instead.
func (e *Executor) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracing.StartChildSpan(ctx, "executor.search")
	defer span.End()
	log := e.log(ctx)

	nq := normalizer.Normalize(req.Query)
	if nq.IsEmpty() {
		span.SetAttr("empty_query", true)
		return &Response{
			Articles:        []corpus.Article{},
			Matches:         []explainer.Explanation{},
			EnhancerOutcome: OutcomeSkipped,
			Terms:           []string{},
		}, nil
	}

	articles, categories, err := e.loadCorpus(ctx)
	if err != nil {
		e.metrics.CorpusError()
		log.Error("corpus read failed", "error", err)
		return nil, err
	}

	res := e.enhance(ctx, req)
	outcome := OutcomeSkipped
	if req.UseAI {
		outcome = enhancer.Outcome(res)
	}
	q := scorer.BuildQuery(nq, res)

	_, scoreSpan := tracing.StartChildSpan(ctx, "executor.score")
	candidates, faults := e.scoreAll(ctx, q, articles, categories, e.now())
	scoreSpan.SetAttr("articles", len(articles))
	scoreSpan.SetAttr("faults", faults)
	scoreSpan.End()
	e.metrics.ObserveScoring(len(articles), faults)

	page := ranker.Rank(candidates, req.Offset, req.Limit)
	resp := &Response{
		Articles:        make([]corpus.Article, 0, len(page.Candidates)),
		Total:           page.Total,
		Matches:         explainer.Explain(page),
		EnhancerOutcome: outcome,
		Terms:           q.Terms,
	}
	for _, c := range page.Candidates {
		resp.Articles = append(resp.Articles, c.Article)
	}
	if enhanced, ok := res.(enhancer.Enhanced); ok && strings.TrimSpace(enhanced.Query) != "" {
		resp.EnhancedQuery = enhanced.Query
		resp.QueryContext = enhanced.Context
		resp.RelatedTerms = q.Related
	}

	span.SetAttr("total", resp.Total)
	log.Info("search executed",
		"query", nq.Text,
		"terms", q.Terms,
		"related", len(q.Related),
		"enhancer", outcome,
		"scored", len(articles),
		"total", resp.Total,
		"returned", len(resp.Articles),
	)
	return resp, nil
}

func (e *Executor) loadCorpus(ctx context.Context) ([]corpus.Article, map[string]string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "executor.corpus")
	defer span.End()

	var (
		all        []corpus.Article
		categories []corpus.Category
		err        error
	)
	if sr, ok := e.provider.(corpus.SnapshotReader); ok {
		var snap corpus.Snapshot
		if snap, err = sr.Snapshot(ctx); err != nil {
			return nil, nil, wrapCorpus("reading corpus snapshot", err)
		}
		all, categories = snap.Articles, snap.Categories
	} else {
		if all, err = e.provider.PublishedArticles(ctx); err != nil {
			return nil, nil, wrapCorpus("reading articles", err)
		}
		if categories, err = e.provider.Categories(ctx); err != nil {
			return nil, nil, wrapCorpus("reading categories", err)
		}
	}
	published := make([]corpus.Article, 0, len(all))
	for _, a := range all {
		if a.IsPublished() {
			published = append(published, a)
		}
	}
	span.SetAttr("articles", len(published))
	return published, corpus.CategoryNames(categories), nil
}

func wrapCorpus(op string, err error) error {
	if errors.Is(err, apperrors.ErrCorpusUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrCorpusUnavailable, err)
}

func (e *Executor) enhance(ctx context.Context, req Request) enhancer.Result {
	if !req.UseAI {
		return enhancer.Unavailable{Reason: errSkipped}
	}
	ctx, span := tracing.StartChildSpan(ctx, "executor.enhance")
	defer span.End()

	start := time.Now()
	res := e.enhancer.Enhance(ctx, req.Query)
	outcome := enhancer.Outcome(res)
	e.metrics.ObserveEnhancer(outcome, time.Since(start).Seconds())
	span.SetAttr("outcome", outcome)

	if u, ok := res.(enhancer.Unavailable); ok {
		log := e.log(ctx)
		if errors.Is(u.Reason, enhancer.ErrDisabled) {
			log.Debug("query enhancement disabled")
		} else {
			log.Warn("query enhancement unavailable, using original query",
				"outcome", outcome,
				"error", u.Reason,
			)
		}
	}
	return res
}

// scoreAll scores every article and returns the survivors in corpus order.
// Each article writes only its own slot, so the result does not depend on
// worker scheduling.
func (e *Executor) scoreAll(
	ctx context.Context,
	q scorer.Query,
	articles []corpus.Article,
	categories map[string]string,
	now time.Time,
) ([]scorer.Candidate, int) {
	slots := make([]scorer.Candidate, len(articles))
	ok := make([]bool, len(articles))
	scoreRange := func(from, to int) {
		for i := from; i < to; i++ {
			a := articles[i]
			slots[i], ok[i] = e.scoreOne(ctx, q, a, categories[a.CategoryID], now)
		}
	}

	if e.pool == nil || len(articles) < e.cfg.ParallelThreshold {
		scoreRange(0, len(articles))
	} else {
		chunk := max(minChunk, (len(articles)+e.pool.Cap()-1)/e.pool.Cap())
		var wg sync.WaitGroup
		for from := 0; from < len(articles); from += chunk {
			to := min(from+chunk, len(articles))
			wg.Add(1)
			task := func() {
				defer wg.Done()
				scoreRange(from, to)
			}
			if err := e.pool.Submit(task); err != nil {
				e.log(ctx).Warn("scoring pool rejected task, scoring inline", "error", err)
				task()
			}
		}
		wg.Wait()
	}

	candidates := make([]scorer.Candidate, 0, len(articles))
	faults := 0
	for i := range slots {
		if !ok[i] {
			faults++
			continue
		}
		candidates = append(candidates, slots[i])
	}
	return candidates, faults
}

func (e *Executor) scoreOne(
	ctx context.Context,
	q scorer.Query,
	a corpus.Article,
	categoryName string,
	now time.Time,
) (c scorer.Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log(ctx).Error("scoring article panicked, skipping it",
				"article_id", a.ID,
				"panic", r,
			)
			c, ok = scorer.Candidate{}, false
		}
	}()
	return e.score(q, a, categoryName, now), true
}

func (e *Executor) log(ctx context.Context) *slog.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return e.logger.With("request_id", id)
	}
	return e.logger
}
