package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Corpus.Source)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Enhancer.Enabled)
	assert.Equal(t, DefaultRanking(), cfg.Ranking)
}

func TestDefaultRanking_MatchesCalibratedConstants(t *testing.T) {
	r := DefaultRanking()

	assert.Equal(t, FieldWeights{Exact: 15, Term: 8, Related: 6}, r.Title)
	assert.Equal(t, FieldWeights{Exact: 7, Term: 4, Related: 3}, r.Publisher)
	assert.Equal(t, FieldWeights{Exact: 10, Term: 5, Related: 4}, r.Summary)
	assert.Equal(t, FieldWeights{Exact: 8, Term: 2, Related: 1}, r.Content)
	assert.Equal(t, FieldWeights{Exact: 10, Term: 6}, r.Slug)
	assert.Equal(t, FieldWeights{Exact: 12, Term: 7, Related: 5}, r.Category)
	assert.Equal(t, 10, r.ContentTermCap)
	assert.Equal(t, 5, r.ContentRelatedCap)
	assert.Equal(t, []RecencyTier{{7, 10}, {14, 6}, {30, 3}}, r.Recency)
	assert.Equal(t, 10, r.ViewsPerPoint)
	assert.Equal(t, 5, r.MaxViewBonus)
}

func TestLoad_FileOverridesKeepOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
search:
  defaultLimit: 20
  maxResults: 50
ranking:
  title:
    exact: 30
enhancer:
  timeout: 1500ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 30, cfg.Ranking.Title.Exact)
	assert.Equal(t, 8, cfg.Ranking.Title.Term)
	assert.Equal(t, 1500*time.Millisecond, cfg.Enhancer.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SP_SERVER_PORT", "7070")
	t.Setenv("SP_CORPUS_SOURCE", "file")
	t.Setenv("SP_CORPUS_FILE", "/tmp/articles.yaml")
	t.Setenv("SP_ENHANCER_ENABLED", "true")
	t.Setenv("SP_ENHANCER_MODEL", "gpt-4o-mini")
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Corpus.Source)
	assert.Equal(t, "/tmp/articles.yaml", cfg.Corpus.FilePath)
	assert.True(t, cfg.Enhancer.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Enhancer.Model)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown corpus source", "corpus:\n  source: mongo\n"},
		{"file source without path", "corpus:\n  source: file\n"},
		{"max below default limit", "search:\n  defaultLimit: 20\n  maxResults: 5\n"},
		{"negative weight", "ranking:\n  summary:\n    term: -1\n"},
		{"unordered recency", "ranking:\n  recency:\n    - {maxDays: 14, bonus: 6}\n    - {maxDays: 7, bonus: 10}\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_DevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Corpus.Source)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "search-analytics", cfg.Kafka.Topics.AnalyticsEvents)
	assert.Equal(t, DefaultRanking(), cfg.Ranking)
}
