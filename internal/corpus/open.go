package corpus

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
)

// Source is a Provider that can report whether it is reachable.
type Source interface {
	Provider
	Ping(ctx context.Context) error
}

// Open builds the provider selected by cfg.Source. The returned close
// function releases any connection it holds.
func Open(ctx context.Context, cfg config.CorpusConfig, pg config.PostgresConfig) (Source, func() error, error) {
	switch cfg.Source {
	case "file":
		m, err := LoadFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return m, func() error { return nil }, nil
	case "postgres":
		db, err := postgres.New(ctx, pg)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting corpus database: %w", err)
		}
		return NewPostgresProvider(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}
