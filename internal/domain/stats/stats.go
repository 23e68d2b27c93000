package stats

import (
	"math"
	"sort"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/result"
)

// ModelStats summarizes results for one model (or all of them).
type ModelStats struct {
	PresenceRate int     `json:"presenceRate"` // percent, 0..100
	AvgRelevance float64 `json:"avgRelevance"`
	AvgAccuracy  float64 `json:"avgAccuracy"`
	AvgSentiment float64 `json:"avgSentiment"`
	AvgOverall   float64 `json:"avgOverall"`
	Count        int     `json:"count"`
}

// Aggregate is the run-wide summary recomputed after every batch.
type Aggregate struct {
	PerModel     map[domain.ModelName]ModelStats `json:"perModel"`
	Overall      ModelStats                      `json:"overall"`
	TotalResults int                             `json:"totalResults"`
}

// Models returns the per-model keys in a stable order.
func (a Aggregate) Models() []domain.ModelName {
	out := make([]domain.ModelName, 0, len(a.PerModel))
	for m := range a.PerModel {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type sums struct {
	count int

	presence, relevance, accuracy, sentiment, overall int
}

func (s *sums) add(r result.Result) {
	s.count++
	s.presence += r.Scores.Presence
	s.relevance += r.Scores.Relevance
	s.accuracy += r.Scores.Accuracy
	s.sentiment += r.Scores.Sentiment
	s.overall += r.Scores.Overall
}

func (s sums) stats() ModelStats {
	if s.count == 0 {
		return ModelStats{}
	}
	n := float64(s.count)
	return ModelStats{
		PresenceRate: int(math.Round(100 * float64(s.presence) / n)),
		AvgRelevance: round1(float64(s.relevance) / n),
		AvgAccuracy:  round1(float64(s.accuracy) / n),
		AvgSentiment: round1(float64(s.sentiment) / n),
		AvgOverall:   round1(float64(s.overall) / n),
		Count:        s.count,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Compute derives per-model and overall stats from the full result list.
// Empty input yields all-zero stats.
func Compute(results []result.Result) Aggregate {
	per := make(map[domain.ModelName]*sums)
	var all sums
	for _, r := range results {
		s, ok := per[r.Model]
		if !ok {
			s = &sums{}
			per[r.Model] = s
		}
		s.add(r)
		all.add(r)
	}

	agg := Aggregate{
		PerModel:     make(map[domain.ModelName]ModelStats, len(per)),
		Overall:      all.stats(),
		TotalResults: len(results),
	}
	for m, s := range per {
		agg.PerModel[m] = s.stats()
	}
	return agg
}
