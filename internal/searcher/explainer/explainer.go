// Package explainer reports why each returned article matched.
package explainer

import (
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/ranker"
)

// Explanation is the score breakdown for one returned article.
type Explanation struct {
	ArticleID string   `json:"articleId"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
}

// Explain lists an explanation for every candidate in p, in page order.
func Explain(p ranker.Page) []Explanation {
	out := make([]Explanation, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		reasons := c.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		out = append(out, Explanation{
			ArticleID: c.Article.ID,
			Score:     c.Score,
			Reasons:   reasons,
		})
	}
	return out
}
