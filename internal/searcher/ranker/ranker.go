// Package ranker orders scored candidates and cuts out the requested page.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/scorer"
)

// Page is one window of the ranked result set. Total counts every candidate
// with a positive score, not just those in the window.
type Page struct {
	Candidates []scorer.Candidate
	Total      int
}

// Rank drops candidates that scored nothing, sorts the rest by score then
// publish time (both descending) and returns the [offset, offset+limit)
// window. Candidates that tie on both keep their input order.
func Rank(candidates []scorer.Candidate, offset, limit int) Page {
	ranked := make([]scorer.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score > 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Article.PublishedAt.After(ranked[j].Article.PublishedAt)
	})

	total := len(ranked)
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= total {
		return Page{Candidates: []scorer.Candidate{}, Total: total}
	}
	end := min(offset+limit, total)
	return Page{Candidates: ranked[offset:end], Total: total}
}
