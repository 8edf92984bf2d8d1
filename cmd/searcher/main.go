package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"corpus", cfg.Corpus.Source,
		"enhancer", cfg.Enhancer.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	source, closeSource, err := corpus.Open(ctx, cfg.Corpus, cfg.Postgres)
	if err != nil {
		slog.Error("failed to open corpus", "error", err)
		os.Exit(1)
	}
	defer closeSource()
	slog.Info("corpus provider ready", "source", cfg.Corpus.Source)

	var enh enhancer.Enhancer = enhancer.Disabled{}
	var llm *enhancer.LLM
	if cfg.Enhancer.Enabled {
		llm, err = enhancer.NewLLM(cfg.Enhancer, enhancer.WithBreakerObserver(func(name string, to resilience.State) {
			m.SetBreakerState(name, int(to))
		}))
		if err != nil {
			slog.Error("failed to create query enhancer", "error", err)
			os.Exit(1)
		}
		enh = llm
		slog.Info("query enhancer enabled", "base_url", cfg.Enhancer.BaseURL, "model", cfg.Enhancer.Model)
	}

	exec, err := executor.New(source, enh, cfg.Search, cfg.Ranking, executor.WithMetrics(m))
	if err != nil {
		slog.Error("failed to create executor", "error", err)
		os.Exit(1)
	}
	defer exec.Close()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	aggregator := analytics.NewAggregator()
	var tracker handler.Tracker = aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, 0)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		analyticsGroup, cacheGroup := instanceGroups(cfg.Kafka.ConsumerGroup, uuid.NewString()[:8])
		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
			analytics.HandleEvent(aggregator), kafka.WithGroupID(analyticsGroup))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.AnalyticsEvents, "group", analyticsGroup)

		if queryCache != nil {
			invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate,
				cache.InvalidationHandler(queryCache, m), kafka.WithGroupID(cacheGroup))
			go func() {
				if err := invalidations.Start(ctx); err != nil {
					slog.Error("cache invalidation consumer error", "error", err)
				}
			}()
			slog.Info("cache invalidation listener started", "topic", cfg.Kafka.Topics.CacheInvalidate, "group", cacheGroup)
		}
	} else {
		slog.Info("kafka disabled, analytics aggregated in-process")
	}

	checker := health.NewChecker()
	checker.Register("corpus", health.PingCheck(source.Ping))
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.OptionalPingCheck(redisClient.Ping)(ctx)
	})
	if cfg.Kafka.Enabled {
		checker.Register("kafka", health.OptionalPingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	}
	if llm != nil {
		checker.Register("query_enhancer", func(ctx context.Context) health.ComponentHealth {
			if state := llm.State(); state != resilience.StateClosed {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	traceRate := 0.0
	if cfg.Tracing.Enabled {
		traceRate = cfg.Tracing.SampleRate
	}
	h := handler.New(exec, cfg.Search,
		handler.WithCache(queryCache),
		handler.WithTracker(tracker),
		handler.WithMetrics(m),
		handler.WithTracing(traceRate),
	)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// instanceGroups names the consumer groups of one searcher process. Both are
// unique per instance, so every instance reads every partition: its
// /api/v1/analytics covers the whole fleet and it flushes its own cache.
func instanceGroups(base, instance string) (analyticsGroup, cacheGroup string) {
	return fmt.Sprintf("%s-analytics-%s", base, instance), fmt.Sprintf("%s-cache-%s", base, instance)
}
