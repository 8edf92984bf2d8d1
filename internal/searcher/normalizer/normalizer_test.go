package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantText  string
		wantTerms []string
	}{
		{"empty", "", "", []string{}},
		{"whitespace only", " \t\n ", "", []string{}},
		{"lowercases and trims", "  Red SEA  ", "red sea", []string{"red", "sea"}},
		{"drops single characters", "a red b sea c", "a red b sea c", []string{"red", "sea"}},
		{"deduplicates in order", "sea red sea RED", "sea red sea red", []string{"sea", "red"}},
		{"keeps punctuation inside terms", "u.s. tariffs", "u.s. tariffs", []string{"u.s.", "tariffs"}},
		{"multibyte single rune dropped", "é café", "é café", []string{"café"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Normalize(tt.raw)
			assert.Equal(t, tt.wantText, q.Text)
			assert.Equal(t, tt.wantTerms, q.Terms)
			assert.Equal(t, tt.wantText == "", q.IsEmpty())
		})
	}
}

func TestRelatedTerms(t *testing.T) {
	got := RelatedTerms(
		[]string{" Shipping ", "", "red", "Suez Canal", "shipping", "  "},
		[]string{"red", "sea"},
	)
	assert.Equal(t, []string{"shipping", "suez canal"}, got)
}
