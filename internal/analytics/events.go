package analytics

import "time"

type EventType string

const EventSearch EventType = "search"

// Enhancer outcomes that do not count as a fallback: the caller opted out,
// the enhancer is switched off, or enhancement succeeded.
const (
	outcomeEnhanced = "enhanced"
	outcomeSkipped  = "skipped"
	outcomeDisabled = "disabled"
)

// SearchEvent describes one served search.
type SearchEvent struct {
	Type            EventType `json:"type"`
	Query           string    `json:"query"`
	Terms           []string  `json:"terms"`
	Total           int       `json:"total"`
	Returned        int       `json:"returned"`
	Offset          int       `json:"offset"`
	Limit           int       `json:"limit"`
	LatencyMs       int64     `json:"latency_ms"`
	CacheHit        bool      `json:"cache_hit"`
	UseAI           bool      `json:"use_ai"`
	EnhancerOutcome string    `json:"enhancer_outcome"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
}

// EnhancerFallback reports whether enhancement was attempted and the search
// fell back to the literal query.
func (e SearchEvent) EnhancerFallback() bool {
	switch e.EnhancerOutcome {
	case "", outcomeEnhanced, outcomeSkipped, outcomeDisabled:
		return false
	default:
		return true
	}
}
