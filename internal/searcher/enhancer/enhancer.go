// Package enhancer widens a search query through an external semantic
// service. Every outcome is a Result: either Enhanced, or Unavailable with
// the reason. Enhancement never fails a search.
package enhancer

import (
	"context"
	"errors"
)

var (
	ErrDisabled          = errors.New("query enhancer disabled")
	ErrEmptyQuery        = errors.New("empty query")
	ErrMalformedResponse = errors.New("malformed enhancer response")
)

// Enhancer rewrites a raw query. Implementations must honour ctx
// cancellation and be safe for concurrent use.
type Enhancer interface {
	Enhance(ctx context.Context, rawQuery string) Result
}

// Result is either Enhanced or Unavailable.
type Result interface {
	isResult()
}

// Enhanced is a successful enhancement. Query replaces the user's query for
// term extraction; RelatedTerms are scored at reduced weight; Context is
// passed through to the caller.
type Enhanced struct {
	Query        string
	RelatedTerms []string
	Context      string
}

// Unavailable means the search must proceed with the original query.
type Unavailable struct {
	Reason error
}

func (Enhanced) isResult()    {}
func (Unavailable) isResult() {}

// Disabled never calls out and always reports ErrDisabled.
type Disabled struct{}

func (Disabled) Enhance(context.Context, string) Result {
	return Unavailable{Reason: ErrDisabled}
}

// Func adapts a plain function to the Enhancer interface.
type Func func(ctx context.Context, rawQuery string) Result

func (f Func) Enhance(ctx context.Context, rawQuery string) Result {
	return f(ctx, rawQuery)
}

// Outcome names a Result for logs and metrics: "enhanced", "disabled",
// "timeout", "cancelled", "circuit_open", "malformed" or "error".
func Outcome(r Result) string {
	switch v := r.(type) {
	case Enhanced:
		return "enhanced"
	case Unavailable:
		return reasonLabel(v.Reason)
	default:
		return "error"
	}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case isCircuitOpen(err):
		return "circuit_open"
	case errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrEmptyQuery):
		return "malformed"
	default:
		return "error"
	}
}
