package corpus

import (
	"context"
	"sync"
)

// Memory is an in-process Provider. It is used by tests and by the file
// provider once a corpus file has been decoded.
type Memory struct {
	mu         sync.RWMutex
	articles   []Article
	categories []Category
}

var (
	_ Provider       = (*Memory)(nil)
	_ SnapshotReader = (*Memory)(nil)
)

// NewMemory copies the given articles and categories into a Memory provider.
func NewMemory(articles []Article, categories []Category) *Memory {
	m := &Memory{}
	m.Replace(articles, categories)
	return m
}

// Replace swaps the stored snapshot.
func (m *Memory) Replace(articles []Article, categories []Category) {
	a := make([]Article, len(articles))
	copy(a, articles)
	c := make([]Category, len(categories))
	copy(c, categories)

	m.mu.Lock()
	m.articles = a
	m.categories = c
	m.mu.Unlock()
}

func (m *Memory) PublishedArticles(ctx context.Context) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Article, 0, len(m.articles))
	for _, a := range m.articles {
		if a.IsPublished() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) Categories(ctx context.Context) ([]Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Category, len(m.categories))
	copy(out, m.categories)
	return out, nil
}

func (m *Memory) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Articles:   make([]Article, 0, len(m.articles)),
		Categories: make([]Category, len(m.categories)),
	}
	for _, a := range m.articles {
		if a.IsPublished() {
			snap.Articles = append(snap.Articles, a)
		}
	}
	copy(snap.Categories, m.categories)
	return snap, nil
}
