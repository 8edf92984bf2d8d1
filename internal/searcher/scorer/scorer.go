// Package scorer computes the relevance score of one article for one query.
//
// Every field is matched case-insensitively by substring: the whole query
// earns the field's exact bonus, each literal term its term bonus and each
// enhancer-supplied related term its related bonus. Content additionally
// earns a capped bonus per occurrence. Terms that start early in the title,
// summary or content, recent publication and view counts add further
// points, but only for articles that matched some query term, so an
// article without any textual match always scores zero. Each rule that
// fires appends a reason tag such as "title:exact" or
// "content:term:freight:3".
package scorer

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/normalizer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
)

// Query is the term pool an article is scored against.
type Query struct {
	Text    string
	Terms   []string
	Related []string
}

// BuildQuery resolves the query the scorer sees. An Enhanced result
// replaces the normalized query and contributes related terms; anything
// else leaves q untouched.
func BuildQuery(q normalizer.NormalizedQuery, res enhancer.Result) Query {
	enhanced, ok := res.(enhancer.Enhanced)
	if !ok {
		return Query{Text: q.Text, Terms: q.Terms}
	}
	eq := normalizer.Normalize(enhanced.Query)
	if eq.IsEmpty() {
		return Query{Text: q.Text, Terms: q.Terms}
	}
	return Query{
		Text:    eq.Text,
		Terms:   eq.Terms,
		Related: normalizer.RelatedTerms(enhanced.RelatedTerms, eq.Terms),
	}
}

// Candidate is an article with its score and the reasons behind it.
type Candidate struct {
	Article corpus.Article
	Score   int
	Reasons []string
}

func (c *Candidate) add(points int, reason string) {
	if points <= 0 {
		return
	}
	c.Score += points
	c.Reasons = append(c.Reasons, reason)
}

// Scorer is stateless apart from its weights and safe for concurrent use.
type Scorer struct {
	w config.RankingConfig
}

func New(weights config.RankingConfig) *Scorer {
	return &Scorer{w: weights}
}

// Score rates article a. categoryName is the display name of a's category,
// or "" when unknown.
func (s *Scorer) Score(q Query, a corpus.Article, categoryName string, now time.Time) Candidate {
	c := Candidate{Article: a, Reasons: make([]string, 0, 8)}

	title := strings.ToLower(a.Title)
	summary := strings.ToLower(a.Summary)
	content := strings.ToLower(a.Content)

	s.matchField(&c, "title", title, s.w.Title, q)
	if a.Publisher != "" {
		s.matchField(&c, "publisher", strings.ToLower(a.Publisher), s.w.Publisher, q)
	}
	s.matchField(&c, "summary", summary, s.w.Summary, q)
	s.matchContent(&c, content, q)
	s.matchField(&c, "slug", strings.ToLower(a.Slug), s.w.Slug, q)
	if categoryName != "" {
		s.matchField(&c, "category", strings.ToLower(categoryName), s.w.Category, q)
	}

	ep := s.w.EarlyPosition
	for _, t := range q.Terms {
		if within(title, t, ep.TitleWindow) {
			c.add(ep.TitleBonus, "title:early:"+t)
		}
		if within(summary, t, ep.SummaryWindow) {
			c.add(ep.SummaryBonus, "summary:early:"+t)
		}
		if within(content, t, ep.ContentWindow) {
			c.add(ep.ContentBonus, "content:early:"+t)
		}
	}

	if c.Score == 0 {
		return c
	}
	s.recency(&c, a.PublishedAt, now)
	s.popularity(&c, a.Views)
	return c
}

func (s *Scorer) matchField(c *Candidate, field, text string, w config.FieldWeights, q Query) {
	if text == "" {
		return
	}
	if strings.Contains(text, q.Text) {
		c.add(w.Exact, field+":exact")
	}
	for _, t := range q.Terms {
		if strings.Contains(text, t) {
			c.add(w.Term, field+":term:"+t)
		}
	}
	for _, r := range q.Related {
		if strings.Contains(text, r) {
			c.add(w.Related, field+":related:"+r)
		}
	}
}

func (s *Scorer) matchContent(c *Candidate, content string, q Query) {
	if content == "" {
		return
	}
	if strings.Contains(content, q.Text) {
		c.add(s.w.Content.Exact, "content:exact")
	}
	for _, t := range q.Terms {
		if n := strings.Count(content, t); n > 0 {
			c.add(s.w.Content.Term+min(n, s.w.ContentTermCap), fmt.Sprintf("content:term:%s:%d", t, n))
		}
	}
	for _, r := range q.Related {
		if n := strings.Count(content, r); n > 0 {
			c.add(s.w.Content.Related+min(n, s.w.ContentRelatedCap), fmt.Sprintf("content:related:%s:%d", r, n))
		}
	}
}

func (s *Scorer) recency(c *Candidate, published, now time.Time) {
	if published.IsZero() {
		return
	}
	days := DaysSince(published, now)
	for _, tier := range s.w.Recency {
		if days < tier.MaxDays {
			c.add(tier.Bonus, fmt.Sprintf("recency:%dd", days))
			return
		}
	}
}

func (s *Scorer) popularity(c *Candidate, views int) {
	if s.w.ViewsPerPoint <= 0 || views <= 0 {
		return
	}
	c.add(min(s.w.MaxViewBonus, views/s.w.ViewsPerPoint), fmt.Sprintf("views:%d", views))
}

// DaysSince returns the whole days elapsed from published to now, rounded
// down. Articles dated in the future yield negative values.
func DaysSince(published, now time.Time) int {
	return int(math.Floor(now.Sub(published).Hours() / 24))
}

// within reports whether term starts within the first window characters of
// text.
func within(text, term string, window int) bool {
	if window <= 0 {
		return false
	}
	idx := strings.Index(text, term)
	if idx < 0 {
		return false
	}
	return utf8.RuneCountInString(text[:idx]) < window
}
