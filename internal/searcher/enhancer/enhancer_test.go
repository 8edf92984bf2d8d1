package enhancer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
)

// fakeModel is a func-field llms.Model.
type fakeModel struct {
	GenerateFunc func(ctx context.Context, messages []llms.MessageContent) (*llms.ContentResponse, error)
	calls        atomic.Int32
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls.Add(1)
	return m.GenerateFunc(ctx, messages)
}

func (m *fakeModel) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func reply(content string) func(context.Context, []llms.MessageContent) (*llms.ContentResponse, error) {
	return func(context.Context, []llms.MessageContent) (*llms.ContentResponse, error) {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
	}
}

func testConfig() config.EnhancerConfig {
	return config.EnhancerConfig{
		Enabled:          true,
		Model:            "test-model",
		Timeout:          200 * time.Millisecond,
		MaxRelatedTerms:  3,
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}
}

func TestLLM_Enhance_Success(t *testing.T) {
	model := &fakeModel{GenerateFunc: reply("```json\n" + `{"enhancedQuery":"Red Sea shipping crisis","relatedTerms":["houthi"," suez canal ","","freight","container rates"],"queryContext":" Maritime disruption "}` + "\n```")}
	e := NewLLMWithModel(model, testConfig())

	res := e.Enhance(context.Background(), "red sea")
	got, ok := res.(Enhanced)
	require.True(t, ok, "expected Enhanced, got %#v", res)
	assert.Equal(t, "Red Sea shipping crisis", got.Query)
	assert.Equal(t, []string{"houthi", "suez canal", "freight"}, got.RelatedTerms)
	assert.Equal(t, "Maritime disruption", got.Context)
	assert.Equal(t, "enhanced", Outcome(res))
}

func TestLLM_Enhance_SendsSystemAndUserMessages(t *testing.T) {
	var seen []llms.MessageContent
	model := &fakeModel{GenerateFunc: func(_ context.Context, msgs []llms.MessageContent) (*llms.ContentResponse, error) {
		seen = msgs
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: `{"enhancedQuery":"x y"}`}}}, nil
	}}
	NewLLMWithModel(model, testConfig()).Enhance(context.Background(), "  panama drought ")

	require.Len(t, seen, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, seen[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, seen[1].Role)
	assert.Equal(t, llms.TextContent{Text: "panama drought"}, seen[1].Parts[0])
}

func TestLLM_Enhance_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		gen     func(context.Context, []llms.MessageContent) (*llms.ContentResponse, error)
		outcome string
	}{
		{"transport error", func(context.Context, []llms.MessageContent) (*llms.ContentResponse, error) {
			return nil, errors.New("connection refused")
		}, "error"},
		{"not json", reply("I think you mean the Red Sea."), "malformed"},
		{"blank enhanced query", reply(`{"enhancedQuery":"   ","relatedTerms":["a"]}`), "malformed"},
		{"no choices", func(context.Context, []llms.MessageContent) (*llms.ContentResponse, error) {
			return &llms.ContentResponse{}, nil
		}, "malformed"},
		{"timeout", func(ctx context.Context, _ []llms.MessageContent) (*llms.ContentResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLLMWithModel(&fakeModel{GenerateFunc: tt.gen}, testConfig())
			res := e.Enhance(context.Background(), "red sea")
			_, ok := res.(Unavailable)
			require.True(t, ok, "expected Unavailable, got %#v", res)
			assert.Equal(t, tt.outcome, Outcome(res))
		})
	}
}

func TestLLM_Enhance_EmptyQuerySkipsModel(t *testing.T) {
	model := &fakeModel{GenerateFunc: reply(`{"enhancedQuery":"x"}`)}
	res := NewLLMWithModel(model, testConfig()).Enhance(context.Background(), "   ")
	assert.Equal(t, Unavailable{Reason: ErrEmptyQuery}, res)
	assert.Zero(t, model.calls.Load())
}

func TestLLM_Enhance_ParentCancellationAbortsCall(t *testing.T) {
	started := make(chan struct{})
	model := &fakeModel{GenerateFunc: func(ctx context.Context, _ []llms.MessageContent) (*llms.ContentResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	cfg := testConfig()
	cfg.Timeout = time.Minute
	e := NewLLMWithModel(model, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	done := make(chan Result, 1)
	go func() { done <- e.Enhance(ctx, "red sea") }()

	select {
	case res := <-done:
		assert.Equal(t, "cancelled", Outcome(res))
	case <-time.After(5 * time.Second):
		t.Fatal("enhance did not return after parent cancellation")
	}
	assert.Equal(t, resilience.StateClosed, e.State())
}

func TestLLM_CircuitOpensAndSkipsModel(t *testing.T) {
	var transitions []resilience.State
	model := &fakeModel{GenerateFunc: func(context.Context, []llms.MessageContent) (*llms.ContentResponse, error) {
		return nil, errors.New("503 service unavailable")
	}}
	e := NewLLMWithModel(model, testConfig(), WithBreakerObserver(func(_ string, to resilience.State) {
		transitions = append(transitions, to)
	}))

	e.Enhance(context.Background(), "red sea")
	e.Enhance(context.Background(), "red sea")
	res := e.Enhance(context.Background(), "red sea")

	assert.Equal(t, "circuit_open", Outcome(res))
	assert.Equal(t, int32(2), model.calls.Load())
	assert.Equal(t, resilience.StateOpen, e.State())
	assert.Equal(t, []resilience.State{resilience.StateOpen}, transitions)
}

func TestDisabledAndFunc(t *testing.T) {
	res := Disabled{}.Enhance(context.Background(), "anything")
	assert.Equal(t, "disabled", Outcome(res))

	f := Func(func(_ context.Context, q string) Result { return Enhanced{Query: q + " extra"} })
	assert.Equal(t, Enhanced{Query: "q extra"}, f.Enhance(context.Background(), "q"))
}

func TestParseResponse(t *testing.T) {
	got, err := parseResponse(`Sure! {"enhancedQuery":"panama canal drought","relatedTerms":["water levels"]} Hope that helps.`, 0)
	require.NoError(t, err)
	assert.Equal(t, "panama canal drought", got.Query)
	assert.Equal(t, []string{"water levels"}, got.RelatedTerms)
	assert.Empty(t, got.Context)

	_, err = parseResponse(`{"enhancedQuery": 5}`, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = parseResponse(``, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
