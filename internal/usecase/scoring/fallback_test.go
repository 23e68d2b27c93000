package scoring

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/aivis/internal/domain/score"
)

// pad extends s with dots to exactly n characters.
func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(".", n-len(s))
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name     string
		phrase   string
		response string
		host     string
		want     score.Set
	}{
		{
			name:     "on topic but short",
			phrase:   "best shoes",
			response: pad("Running shoes from several brands are popular this season", 100),
			want:     score.Set{Presence: 1, Relevance: 2, Accuracy: 3, Sentiment: 3, Overall: 2},
		},
		{
			name:     "on topic and substantial",
			phrase:   "best shoes",
			response: pad("The best running shoes depend on your gait", 151),
			want:     score.Set{Presence: 1, Relevance: 3, Accuracy: 3, Sentiment: 3, Overall: 3},
		},
		{
			name:     "off topic short",
			phrase:   "best shoes",
			response: "I cannot help with that.",
			want:     score.Set{Presence: 0, Relevance: 1, Accuracy: 2, Sentiment: 2, Overall: 2},
		},
		{
			name:     "error mention lowers tone",
			phrase:   "fix printer",
			response: pad("Printer ERROR codes usually mean a paper jam", 200),
			want:     score.Set{Presence: 1, Relevance: 3, Accuracy: 2, Sentiment: 2, Overall: 3},
		},
		{
			name:     "domain mention without query terms",
			phrase:   "best shoes",
			response: "Acme Corp is a well known retailer.",
			host:     "acme.io",
			want:     score.Set{Presence: 1, Relevance: 1, Accuracy: 2, Sentiment: 2, Overall: 2},
		},
		{
			name:     "short tokens ignored",
			phrase:   "go to it",
			response: "go to it",
			want:     score.Set{Presence: 0, Relevance: 1, Accuracy: 2, Sentiment: 2, Overall: 2},
		},
		{
			name:     "case insensitive terms",
			phrase:   "SHOES",
			response: "shoes",
			want:     score.Set{Presence: 1, Relevance: 2, Accuracy: 2, Sentiment: 2, Overall: 2},
		},
		{
			name:     "boundaries are exclusive",
			phrase:   "shoes",
			response: pad("shoes", 150),
			want:     score.Set{Presence: 1, Relevance: 2, Accuracy: 3, Sentiment: 3, Overall: 2},
		},
		{
			name:     "exactly 80 characters is not professional",
			phrase:   "shoes",
			response: pad("shoes", 80),
			want:     score.Set{Presence: 1, Relevance: 2, Accuracy: 2, Sentiment: 2, Overall: 2},
		},
		{
			name:     "query term as substring",
			phrase:   "shoe",
			response: "Sneakers and SHOEBOXES",
			want:     score.Set{Presence: 1, Relevance: 2, Accuracy: 2, Sentiment: 2, Overall: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.phrase, tt.response, tt.host)
			if got != tt.want {
				t.Errorf("Fallback() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFallback_Deterministic(t *testing.T) {
	resp := pad("Acme sells shoes", 120)
	first := Fallback("best shoes", resp, "acme.io")
	for range 20 {
		if got := Fallback("best shoes", resp, "acme.io"); got != first {
			t.Fatalf("Fallback() changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestFallback_CountsCharactersNotBytes(t *testing.T) {
	// 81 two-byte runes: > 80 characters, 162 bytes (not > 150 characters).
	resp := strings.Repeat("é", 81)
	got := Fallback("zzz", resp, "")
	if got.Accuracy != 3 {
		t.Errorf("Accuracy = %d, want 3", got.Accuracy)
	}
	if got.Overall != 2 || got.Relevance != 1 {
		t.Errorf("got %+v", got)
	}
}
