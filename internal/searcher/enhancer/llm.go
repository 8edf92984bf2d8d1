package enhancer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
)

// LLM enhances queries with an OpenAI-compatible chat model. Each call runs
// under cfg.Timeout, derived from the caller's context, behind a circuit
// breaker so an unhealthy service is skipped without waiting.
type LLM struct {
	model   llms.Model
	cfg     config.EnhancerConfig
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// Option configures an LLM enhancer.
type Option func(*options)

type options struct {
	onStateChange func(name string, to resilience.State)
}

// WithBreakerObserver reports circuit breaker transitions, e.g. to metrics.
func WithBreakerObserver(fn func(name string, to resilience.State)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// NewLLM builds the enhancer against cfg.BaseURL and cfg.Model.
func NewLLM(cfg config.EnhancerConfig, opts ...Option) (*LLM, error) {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating enhancer model client: %w", err)
	}
	return NewLLMWithModel(model, cfg, opts...), nil
}

// NewLLMWithModel wraps an existing llms.Model.
func NewLLMWithModel(model llms.Model, cfg config.EnhancerConfig, opts ...Option) *LLM {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &LLM{
		model: model,
		cfg:   cfg,
		breaker: resilience.NewCircuitBreaker("query-enhancer", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange:    o.onStateChange,
		}),
		logger: slog.Default().With("component", "query-enhancer", "model", cfg.Model),
	}
}

// Enhance never returns an error; failures become Unavailable.
func (e *LLM) Enhance(ctx context.Context, rawQuery string) Result {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return Unavailable{Reason: ErrEmptyQuery}
	}
	var enhanced Enhanced
	err := e.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		out, err := resilience.CallWithTimeout(ctx, e.cfg.Timeout, "query-enhancer", func(ctx context.Context) (Enhanced, error) {
			return e.generate(ctx, query)
		})
		if err != nil {
			return err
		}
		enhanced = out
		return nil
	})
	if err != nil {
		return Unavailable{Reason: err}
	}
	e.logger.Debug("query enhanced",
		"query", query,
		"enhanced_query", enhanced.Query,
		"related_terms", len(enhanced.RelatedTerms),
	)
	return enhanced
}

// State exposes the breaker state for health checks.
func (e *LLM) State() resilience.State {
	return e.breaker.GetState()
}

func (e *LLM) generate(ctx context.Context, query string) (Enhanced, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, query),
	}
	resp, err := e.model.GenerateContent(ctx, content,
		llms.WithTemperature(e.cfg.Temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Enhanced{}, fmt.Errorf("generating enhancement: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Enhanced{}, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	return parseResponse(resp.Choices[0].Content, e.cfg.MaxRelatedTerms)
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen)
}
