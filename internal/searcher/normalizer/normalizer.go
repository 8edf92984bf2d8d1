// Package normalizer turns a raw search string into the lowercase query and
// term list the scorer matches against article fields.
package normalizer

import (
	"strings"
	"unicode/utf8"
)

// NormalizedQuery is the trimmed, lowercased query plus its distinct terms
// in first-seen order. Terms are whitespace-delimited and longer than one
// character.
type NormalizedQuery struct {
	Text  string
	Terms []string
}

// IsEmpty reports whether there is nothing to search for.
func (q NormalizedQuery) IsEmpty() bool {
	return q.Text == ""
}

func Normalize(raw string) NormalizedQuery {
	text := strings.ToLower(strings.TrimSpace(raw))
	return NormalizedQuery{
		Text:  text,
		Terms: Terms(text),
	}
}

// Terms splits already-lowercased text on whitespace, dropping single
// characters and duplicates.
func Terms(text string) []string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// RelatedTerms lowercases and trims enhancer-supplied terms, dropping empty
// entries, duplicates and anything already present in literal.
func RelatedTerms(related []string, literal []string) []string {
	seen := make(map[string]struct{}, len(related)+len(literal))
	for _, t := range literal {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(related))
	for _, r := range related {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
