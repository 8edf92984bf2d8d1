package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk layout read by LoadFile.
//
//	categories:
//	  - {id: world, name: World}
//	articles:
//	  - id: a1
//	    title: ...
//	    status: published
//	    publishedAt: 2026-10-01T09:00:00Z
type Snapshot struct {
	Categories []Category `yaml:"categories"`
	Articles   []Article  `yaml:"articles"`
}

// LoadFile decodes a YAML corpus snapshot into a Memory provider. Articles
// with no status are treated as published.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file %s: %w", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(snap.Articles))
	for i := range snap.Articles {
		a := &snap.Articles[i]
		if a.ID == "" {
			return nil, fmt.Errorf("corpus file %s: article %d has no id", path, i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("corpus file %s: duplicate article id %q", path, a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Status == "" {
			a.Status = StatusPublished
		}
	}
	slog.Default().With("component", "corpus-file").Info("corpus loaded",
		"path", path,
		"articles", len(snap.Articles),
		"categories", len(snap.Categories),
	)
	return NewMemory(snap.Articles, snap.Categories), nil
}

// Ping reports whether ctx is still usable; a file corpus has no remote
// dependency.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
