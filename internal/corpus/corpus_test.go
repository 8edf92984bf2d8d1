package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PublishedArticlesFiltersStatus(t *testing.T) {
	m := NewMemory([]Article{
		{ID: "a1", Status: StatusPublished},
		{ID: "a2", Status: StatusDraft},
		{ID: "a3", Status: StatusArchived},
		{ID: "a4", Status: StatusPublished},
	}, []Category{{ID: "c1", Name: "World"}})

	got, err := m.PublishedArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a4", got[1].ID)

	cats, err := m.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c1": "World"}, CategoryNames(cats))
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory([]Article{{ID: "a1", Title: "Original", Status: StatusPublished}}, nil)
	got, err := m.PublishedArticles(context.Background())
	require.NoError(t, err)
	got[0].Title = "Mutated"

	again, err := m.PublishedArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Original", again[0].Title)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory(nil, nil).PublishedArticles(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - {id: shipping, name: Shipping}
articles:
  - id: a1
    title: Red Sea Crisis Triggers Global Supply Chain Rerouting
    slug: red-sea-crisis
    categoryId: shipping
    publishedAt: 2026-10-10T08:00:00Z
    views: 12
  - id: a2
    title: Draft piece
    status: draft
`), 0o600))

	m, err := LoadFile(path)
	require.NoError(t, err)

	got, err := m.PublishedArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, 12, got[0].Views)
	assert.Equal(t, time.Date(2026, 10, 10, 8, 0, 0, 0, time.UTC), got[0].PublishedAt.UTC())
	assert.NoError(t, m.Ping(context.Background()))
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"missing id":   "articles:\n  - title: x\n",
		"duplicate id": "articles:\n  - id: a\n  - id: a\n",
		"bad yaml":     "articles: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresProvider_Queries(t *testing.T) {
	p := NewPostgresProvider(nil)

	query, args, err := p.articlesQuery()
	require.NoError(t, err)
	assert.Contains(t, query, "FROM articles WHERE status = $1")
	assert.Contains(t, query, "COALESCE(title, '')")
	assert.Contains(t, query, "ORDER BY published_at DESC NULLS LAST, id")
	assert.Equal(t, []any{"published"}, args)

	query, args, err = p.categoriesQuery()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id::text, COALESCE(name, '') FROM categories ORDER BY id", query)
	assert.Empty(t, args)
}

// fakeRow mimics database/sql conversion for the destination types the
// article decoder uses, including its refusal to put NULL into a string.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("expected %d destination arguments, got %d", len(r), len(dest))
	}
	for i, d := range dest {
		v := r[i]
		switch d := d.(type) {
		case sql.Scanner:
			if err := d.Scan(v); err != nil {
				return err
			}
		case *string:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("sql: Scan error on column index %d: converting NULL to string is unsupported", i)
			}
			*d = s
		case *int:
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("sql: Scan error on column index %d: converting NULL to int is unsupported", i)
			}
			*d = int(n)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func TestScanArticle(t *testing.T) {
	published := time.Date(2026, 10, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		row  fakeRow
		want Article
	}{
		{
			name: "all columns",
			row:  fakeRow{"a1", "Red Sea", "s", "c", "red-sea", "Maritime Desk", "world", published, int64(7), "published"},
			want: Article{ID: "a1", Title: "Red Sea", Summary: "s", Content: "c", Slug: "red-sea",
				Publisher: "Maritime Desk", CategoryID: "world", PublishedAt: published, Views: 7, Status: StatusPublished},
		},
		{
			name: "null publisher and published_at",
			row:  fakeRow{"a2", "Panama Canal", "", "", "", nil, "", nil, int64(0), "published"},
			want: Article{ID: "a2", Title: "Panama Canal", Status: StatusPublished},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanArticle(tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsPublished())
		})
	}
}

func TestScanArticle_ErrorKeepsID(t *testing.T) {
	got, err := scanArticle(fakeRow{"a3", nil, "", "", "", nil, "", nil, int64(0), "published"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "converting NULL to string")
	assert.Equal(t, "a3", got.ID)
}

func TestMemory_Snapshot(t *testing.T) {
	m := NewMemory([]Article{
		{ID: "a1", Status: StatusPublished},
		{ID: "a2", Status: StatusDraft},
	}, []Category{{ID: "world", Name: "World"}})

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Articles, 1)
	assert.Equal(t, "a1", snap.Articles[0].ID)
	assert.Equal(t, []Category{{ID: "world", Name: "World"}}, snap.Categories)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile_ExampleCorpus(t *testing.T) {
	m, err := LoadFile(filepath.Join("..", "..", "configs", "articles.example.yaml"))
	require.NoError(t, err)

	articles, err := m.PublishedArticles(context.Background())
	require.NoError(t, err)
	assert.Len(t, articles, 4)

	categories, err := m.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Business", CategoryNames(categories)["business"])
}
