package result

import (
	"github.com/kailas-cloud/aivis/internal/domain/query"
	"github.com/kailas-cloud/aivis/internal/domain/score"
)

// Status is the durable-storage outcome of a single result.
type Status string

// Persistence status values.
const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Persistence records whether a result reached storage. A result is always delivered
// to the caller; only StatusOK guarantees it was also stored.
type Persistence struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Persisted marks a stored result.
func Persisted() Persistence { return Persistence{Status: StatusOK} }

// Skipped marks a result that had nothing to attach to (unknown keyword or phrase).
func Skipped(reason string) Persistence { return Persistence{Status: StatusSkipped, Reason: reason} }

// Failed marks a result whose write errored.
func Failed(err error) Persistence {
	p := Persistence{Status: StatusFailed}
	if err != nil {
		p.Reason = err.Error()
	}
	return p
}

// Result is one answered and scored task. Never mutated after it is emitted.
type Result struct {
	query.Task
	Response          string       `json:"response"`
	LatencySeconds    float64      `json:"latencySeconds"`
	Cost              float64      `json:"cost"`
	Scores            score.Set    `json:"scores"`
	ScoreSource       score.Source `json:"scoreSource"`
	ProgressPercent   float64      `json:"progressPercent"`
	PersistedResultID *int64       `json:"persistedResultId"`
	PersistedPhraseID *int64       `json:"persistedPhraseId"`
	Persistence       Persistence  `json:"persistence"`
}
