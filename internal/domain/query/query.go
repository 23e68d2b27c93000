package query

import (
	"strings"

	"github.com/kailas-cloud/aivis/internal/domain"
)

// MaxTasks caps phrases x models for a single run.
const MaxTasks = 1000

// Item is one keyword with the phrases to ask about it, as submitted by the caller.
type Item struct {
	Keyword string   `json:"keyword" yaml:"keyword"`
	Phrases []string `json:"phrases" yaml:"phrases"`
}

// Request is one phrase to query, flattened out of an Item.
type Request struct {
	Keyword   string `json:"keyword"`
	Phrase    string `json:"phrase"`
	DomainID  int64  `json:"domainId"`
	VersionID *int64 `json:"versionId,omitempty"`
}

// Task pairs a Request with the model that should answer it.
type Task struct {
	Request
	Model domain.ModelName `json:"model"`
}

// Identity is the dedup key of a task within one run.
type Identity string

// Identity returns phrase|model|keyword.
func (t Task) Identity() Identity {
	return Identity(t.Phrase + "|" + string(t.Model) + "|" + t.Keyword)
}

// Flatten turns caller items into one Request per phrase, in submission order.
// Surrounding whitespace is trimmed; blank phrases are dropped.
func Flatten(items []Item, domainID int64, versionID *int64) []Request {
	var out []Request
	for _, it := range items {
		kw := strings.TrimSpace(it.Keyword)
		for _, p := range it.Phrases {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			out = append(out, Request{
				Keyword:   kw,
				Phrase:    p,
				DomainID:  domainID,
				VersionID: versionID,
			})
		}
	}
	return out
}

// Expand pairs every request with every model. Tasks are ordered request-major,
// so the models for one phrase stay adjacent.
func Expand(reqs []Request, models []domain.ModelName) []Task {
	tasks := make([]Task, 0, len(reqs)*len(models))
	for _, r := range reqs {
		for _, m := range models {
			tasks = append(tasks, Task{Request: r, Model: m})
		}
	}
	return tasks
}

// CountTasks returns the number of tasks the items would produce without building them.
func CountTasks(items []Item, models int) int {
	n := 0
	for _, it := range items {
		for _, p := range it.Phrases {
			if strings.TrimSpace(p) != "" {
				n++
			}
		}
	}
	return n * models
}
