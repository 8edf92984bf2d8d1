// Package corpus defines the read-only article snapshot the search engine
// ranks and the providers that load it from Postgres, YAML files or memory.
package corpus

import (
	"context"
	"time"
)

// Status is the lifecycle state of an article. Only StatusPublished
// articles are searchable.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Article is a snapshot of a stored article. The search engine never
// mutates it.
type Article struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Summary     string    `json:"summary" yaml:"summary"`
	Content     string    `json:"content" yaml:"content"`
	Slug        string    `json:"slug" yaml:"slug"`
	Publisher   string    `json:"publisher,omitempty" yaml:"publisher"`
	CategoryID  string    `json:"categoryId" yaml:"categoryId"`
	PublishedAt time.Time `json:"publishedAt" yaml:"publishedAt"`
	Views       int       `json:"views" yaml:"views"`
	Status      Status    `json:"status" yaml:"status"`
}

// IsPublished reports whether the article may be scored.
func (a Article) IsPublished() bool {
	return a.Status == StatusPublished
}

// Category is used only to resolve an article's category display name.
type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Provider supplies the searchable corpus. Implementations must be safe for
// concurrent use.
type Provider interface {
	// PublishedArticles returns every article whose status is published.
	PublishedArticles(ctx context.Context) ([]Article, error)
	// Categories returns every category.
	Categories(ctx context.Context) ([]Category, error)
}

// SnapshotReader is implemented by providers that can return articles and
// categories from one consistent read. Callers prefer it over two separate
// Provider calls when available.
type SnapshotReader interface {
	// Snapshot returns the published articles and every category.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// CategoryNames indexes categories by id.
func CategoryNames(categories []Category) map[string]string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names
}
