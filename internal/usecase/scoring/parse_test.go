package scoring

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/score"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want score.Set
	}{
		{
			name: "plain",
			raw:  `{"presence":0,"relevance":3,"accuracy":3,"sentiment":2,"overall":3}`,
			want: score.Set{Presence: 0, Relevance: 3, Accuracy: 3, Sentiment: 2, Overall: 3},
		},
		{
			name: "fenced with trailing comma",
			raw:  "```json\n{\"presence\":1,\"relevance\":4,\"accuracy\":4,\"sentiment\":5,\"overall\":4,\n}\n```",
			want: score.Set{Presence: 1, Relevance: 4, Accuracy: 4, Sentiment: 5, Overall: 4},
		},
		{
			name: "prose around object and string numbers",
			raw:  `Here you go: {"presence":"1","relevance":"2","accuracy":"3","sentiment":"3","overall":"2"} Thanks`,
			want: score.Set{Presence: 1, Relevance: 2, Accuracy: 3, Sentiment: 3, Overall: 2},
		},
		{
			name: "out of range is clamped",
			raw:  `{"presence":7,"relevance":9,"accuracy":0,"sentiment":-2,"overall":4.6}`,
			want: score.Set{Presence: 1, Relevance: 5, Accuracy: 1, Sentiment: 1, Overall: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{
		"",
		"no json here",
		`{"presence":1,"relevance":3}`,
		`{"presence":1,"relevance":"high","accuracy":3,"sentiment":3,"overall":3}`,
	} {
		if _, err := Parse(raw); !errors.Is(err, domain.ErrScoreParse) {
			t.Errorf("Parse(%q) error = %v, want ErrScoreParse", raw, err)
		}
	}
}
