package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceGroups(t *testing.T) {
	a1, c1 := instanceGroups("article-search", "0a1b2c3d")
	a2, c2 := instanceGroups("article-search", "4e5f6a7b")

	assert.Equal(t, "article-search-analytics-0a1b2c3d", a1)
	assert.Equal(t, "article-search-cache-0a1b2c3d", c1)
	assert.NotEqual(t, a1, a2)
	assert.NotEqual(t, c1, c2)
	assert.NotEqual(t, "article-search", a1)
}
