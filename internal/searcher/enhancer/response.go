package enhancer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/normalizer"
)

type payload struct {
	EnhancedQuery string   `json:"enhancedQuery"`
	RelatedTerms  []string `json:"relatedTerms"`
	QueryContext  *string  `json:"queryContext"`
}

// parseResponse decodes the model's reply. Code fences and prose around the
// JSON object are tolerated; a missing or blank enhancedQuery is not.
func parseResponse(text string, maxRelated int) (Enhanced, error) {
	body := extractObject(text)
	if body == "" {
		return Enhanced{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Enhanced{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	query := strings.TrimSpace(p.EnhancedQuery)
	if normalizer.Normalize(query).IsEmpty() {
		return Enhanced{}, fmt.Errorf("%w: enhancedQuery is empty", ErrMalformedResponse)
	}

	related := make([]string, 0, len(p.RelatedTerms))
	for _, t := range p.RelatedTerms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		related = append(related, t)
		if maxRelated > 0 && len(related) == maxRelated {
			break
		}
	}

	out := Enhanced{Query: query, RelatedTerms: related}
	if p.QueryContext != nil {
		out.Context = strings.TrimSpace(*p.QueryContext)
	}
	return out, nil
}

func extractObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
