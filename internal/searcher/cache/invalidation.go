package cache

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
)

// ArticleChange is published on the cache-invalidate topic whenever an
// article or category is created, updated, published or removed.
type ArticleChange struct {
	ArticleID  string `json:"articleId,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
	Action     string `json:"action"`
}

// InvalidationHandler flushes the cache on every change event. Any corpus
// change can move any result, so the whole cache goes. Flush failures are
// returned so the message is retried instead of committed.
func InvalidationHandler(c *QueryCache, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "cache-invalidator")
	return func(ctx context.Context, key []byte, value []byte) error {
		change, err := kafka.DecodeJSON[ArticleChange](value)
		if err != nil {
			logger.Warn("undecodable change event, flushing anyway", "key", string(key), "error", err)
		}
		deleted, err := c.Invalidate(ctx)
		if err != nil {
			return err
		}
		m.CacheInvalidated("event")
		logger.Info("cache flushed on corpus change",
			"action", change.Action,
			"article_id", change.ArticleID,
			"keys_deleted", deleted,
		)
		return nil
	}
}
