package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
)

var changeActions = map[string]bool{
	"created": true, "updated": true, "published": true, "unpublished": true, "deleted": true,
}

// changeFromFlags builds the event announced by the notify command.
func changeFromFlags(c *cli.Context) (cache.ArticleChange, error) {
	change := cache.ArticleChange{
		ArticleID:  c.String("article"),
		CategoryID: c.String("category"),
		Action:     c.String("action"),
	}
	if change.ArticleID == "" && change.CategoryID == "" {
		return change, fmt.Errorf("--article or --category is required")
	}
	if !changeActions[change.Action] {
		return change, fmt.Errorf("unknown action %q", change.Action)
	}
	return change, nil
}

func notifyCommand(c *cli.Context) error {
	change, err := changeFromFlags(c)
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka is disabled in the config; search caches are only flushed through the API")
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer producer.Close()

	key := change.ArticleID
	if key == "" {
		key = change.CategoryID
	}
	if err := producer.Publish(c.Context, kafka.Event{Key: key, Value: change}); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "published %s change for %s to %s\n", change.Action, key, cfg.Kafka.Topics.CacheInvalidate)
	return nil
}
