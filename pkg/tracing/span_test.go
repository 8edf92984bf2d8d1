package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansJoinParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "http.search", "req-1")
	childCtx, child := StartChildSpan(ctx, "executor.search")
	_, grandchild := StartChildSpan(childCtx, "executor.score")
	grandchild.SetAttr("articles", 12)
	grandchild.End()
	child.End()
	root.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.Equal(t, "req-1", grandchild.TraceID)
	assert.Same(t, grandchild, child.Children[0])
	assert.Equal(t, 12, grandchild.Attrs["articles"])
	assert.Same(t, child, SpanFromContext(childCtx))
	assert.NotPanics(t, root.Log)
}

func TestChildSpanWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestShouldSample(t *testing.T) {
	assert.True(t, ShouldSample(1))
	assert.True(t, ShouldSample(2))
	assert.False(t, ShouldSample(0))
	assert.False(t, ShouldSample(-1))
}
