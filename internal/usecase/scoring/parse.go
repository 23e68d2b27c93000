package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/score"
)

// judgeReply accepts numbers or numeric strings, models produce both.
type judgeReply struct {
	Presence  *json.Number `json:"presence"`
	Relevance *json.Number `json:"relevance"`
	Accuracy  *json.Number `json:"accuracy"`
	Sentiment *json.Number `json:"sentiment"`
	Overall   *json.Number `json:"overall"`
}

// Parse reads the judge reply into a normalized set. Code fences, prose around the
// object and trailing commas are tolerated; a missing dimension is an error.
func Parse(raw string) (score.Set, error) {
	obj := extractObject(raw)
	if obj == "" {
		return score.Set{}, fmt.Errorf("%w: no JSON object in reply", domain.ErrScoreParse)
	}

	var r judgeReply
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return score.Set{}, fmt.Errorf("%w: %w", domain.ErrScoreParse, err)
	}

	var s score.Set
	fields := []struct {
		name string
		num  *json.Number
		dst  *int
	}{
		{"presence", r.Presence, &s.Presence},
		{"relevance", r.Relevance, &s.Relevance},
		{"accuracy", r.Accuracy, &s.Accuracy},
		{"sentiment", r.Sentiment, &s.Sentiment},
		{"overall", r.Overall, &s.Overall},
	}
	for _, f := range fields {
		if f.num == nil {
			return score.Set{}, fmt.Errorf("%w: missing %s", domain.ErrScoreParse, f.name)
		}
		v, err := f.num.Float64()
		if err != nil {
			return score.Set{}, fmt.Errorf("%w: %s: %w", domain.ErrScoreParse, f.name, err)
		}
		*f.dst = int(math.Round(v))
	}
	return s.Normalize(), nil
}

func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	s = s[start : end+1]

	s = strings.ReplaceAll(s, ",\n}", "\n}")
	s = strings.ReplaceAll(s, ", }", " }")
	s = strings.ReplaceAll(s, ",}", "}")
	return s
}
