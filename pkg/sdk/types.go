package aivis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/aivis/internal/domain/event"
	"github.com/kailas-cloud/aivis/internal/domain/query"
	"github.com/kailas-cloud/aivis/internal/domain/result"
	"github.com/kailas-cloud/aivis/internal/domain/score"
	"github.com/kailas-cloud/aivis/internal/domain/stats"
)

// Wire types shared with the server.
type (
	Item        = query.Item
	Progress    = event.Progress
	Result      = result.Result
	Scores      = score.Set
	Stats       = stats.Aggregate
	ModelStats  = stats.ModelStats
	Failure     = event.Failure
	Summary     = event.Summary
	Persistence = result.Persistence
)

// RunRequest is the body of POST /api/v1/domains/{id}/runs.
type RunRequest struct {
	Items []Item `json:"items"`
	// VersionID scopes keyword lookups to one version instead of the whole domain.
	VersionID *int64 `json:"versionId,omitempty"`
}

// EventType names an event on the run stream.
type EventType string

// Event types.
const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventStats    EventType = "stats"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one decoded stream event. Exactly one payload field is set, matching Type.
type Event struct {
	Type     EventType
	Progress *Progress
	Result   *Result
	Stats    *Stats
	Error    *Failure
	Complete *Summary
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || (e.Type == EventError && e.Error != nil && e.Error.Fatal)
}

// errUnknownEvent marks event types this client does not know; the stream skips them.
var errUnknownEvent = errors.New("aivis: unknown event type")

func decodeEvent(typ EventType, data []byte) (Event, error) {
	ev := Event{Type: typ}
	var target any
	switch typ {
	case EventProgress:
		ev.Progress = new(Progress)
		target = ev.Progress
	case EventResult:
		ev.Result = new(Result)
		target = ev.Result
	case EventStats:
		ev.Stats = new(Stats)
		target = ev.Stats
	case EventError:
		ev.Error = new(Failure)
		target = ev.Error
	case EventComplete:
		ev.Complete = new(Summary)
		target = ev.Complete
	default:
		return Event{}, fmt.Errorf("%w %q", errUnknownEvent, typ)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return Event{}, fmt.Errorf("aivis: decode %s event: %w", typ, err)
	}
	return ev, nil
}

// Slots is the admission state of one domain.
type Slots struct {
	DomainID int64 `json:"domainId"`
	Active   int   `json:"active"`
	Limit    int   `json:"limit"`
}

// Available returns how many more runs the domain can start right now.
func (s Slots) Available() int {
	if s.Active >= s.Limit {
		return 0
	}
	return s.Limit - s.Active
}

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport holds per-model token usage for a period.
type UsageReport struct {
	Period        UsagePeriod  `json:"period"`
	PeriodStartAt *time.Time   `json:"periodStartAt,omitempty"`
	PeriodEndAt   *time.Time   `json:"periodEndAt,omitempty"`
	Models        []ModelUsage `json:"models"`
}

// ModelUsage is one model's line in a usage report.
type ModelUsage struct {
	Model    string       `json:"model"`
	Requests int64        `json:"requests"`
	Tokens   int64        `json:"tokens"`
	CostUSD  float64      `json:"costUsd"`
	Budget   BudgetStatus `json:"budget"`
}

// BudgetStatus tracks token quota state. A zero TokensLimit means unlimited.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokensLimit"`
	TokensRemaining int64      `json:"tokensRemaining"`
	IsExhausted     bool       `json:"isExhausted"`
	ResetsAt        *time.Time `json:"resetsAt,omitempty"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every component answered.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }
