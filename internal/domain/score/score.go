package score

// Range bounds for graded dimensions.
const (
	MinGrade = 1
	MaxGrade = 5
)

// Source tells whether scores came from the judge model or the heuristic.
type Source string

// Score sources.
const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Set is a fully populated score for one response.
type Set struct {
	Presence  int `json:"presence"` // 0 or 1
	Relevance int `json:"relevance"`
	Accuracy  int `json:"accuracy"`
	Sentiment int `json:"sentiment"`
	Overall   int `json:"overall"`
}

// Normalize forces presence to 0|1 and every grade into [MinGrade, MaxGrade].
func (s Set) Normalize() Set {
	if s.Presence > 0 {
		s.Presence = 1
	} else {
		s.Presence = 0
	}
	s.Relevance = clamp(s.Relevance)
	s.Accuracy = clamp(s.Accuracy)
	s.Sentiment = clamp(s.Sentiment)
	s.Overall = clamp(s.Overall)
	return s
}

func clamp(v int) int {
	if v < MinGrade {
		return MinGrade
	}
	if v > MaxGrade {
		return MaxGrade
	}
	return v
}
