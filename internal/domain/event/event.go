package event

import (
	"github.com/kailas-cloud/aivis/internal/domain/result"
	"github.com/kailas-cloud/aivis/internal/domain/stats"
)

// Type names an event on the run stream.
type Type string

// Event types, in the order a healthy run produces them.
const (
	TypeProgress Type = "progress"
	TypeResult   Type = "result"
	TypeStats    Type = "stats"
	TypeError    Type = "error"
	TypeComplete Type = "complete"
)

// Event is one message on the run stream. Data is JSON-encoded by the transport.
type Event struct {
	Type Type
	Data any
}

// Progress announces the start of a batch.
type Progress struct {
	Message      string  `json:"message"`
	Batch        int     `json:"batch"`
	TotalBatches int     `json:"totalBatches"`
	Percent      float64 `json:"percent"`
}

// Failure describes either a per-task error (Fatal=false) or a run-ending one.
type Failure struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Phrase  string `json:"phrase,omitempty"`
	Model   string `json:"model,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Fatal   bool   `json:"fatal"`
}

// Summary closes a successful run.
type Summary struct {
	RunID           string          `json:"runId"`
	DomainID        int64           `json:"domainId"`
	TotalTasks      int             `json:"totalTasks"`
	Completed       int             `json:"completed"`
	Failed          int             `json:"failed"`
	Duplicates      int             `json:"duplicates"`
	Batches         int             `json:"batches"`
	DurationSeconds float64         `json:"durationSeconds"`
	Stats           stats.Aggregate `json:"stats"`
}

// NewProgress builds a progress event.
func NewProgress(p Progress) Event { return Event{Type: TypeProgress, Data: p} }

// NewResult builds a result event.
func NewResult(r result.Result) Event { return Event{Type: TypeResult, Data: r} }

// NewStats builds a stats event.
func NewStats(a stats.Aggregate) Event { return Event{Type: TypeStats, Data: a} }

// NewError builds an error event.
func NewError(f Failure) Event { return Event{Type: TypeError, Data: f} }

// NewComplete builds the terminal success event.
func NewComplete(s Summary) Event { return Event{Type: TypeComplete, Data: s} }
