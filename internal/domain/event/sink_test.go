package event

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/aivis/internal/domain/stats"
)

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf)

	if err := s.Emit(NewProgress(Progress{Message: "batch 1/2", Batch: 1, TotalBatches: 2})); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := s.Emit(NewError(Failure{Message: "boom", Fatal: true})); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var first struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Event != "progress" {
		t.Errorf("event = %q, want progress", first.Event)
	}
	if first.Data["totalBatches"] != float64(2) {
		t.Errorf("totalBatches = %v", first.Data["totalBatches"])
	}
}

type countingSink struct {
	inFlight, maxInFlight int
	mu                    sync.Mutex
}

func (c *countingSink) Emit(Event) error {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	c.mu.Unlock()

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return nil
}

func TestSerialize(t *testing.T) {
	inner := &countingSink{}
	s := Serialize(inner)
	if Serialize(s) != s {
		t.Error("Serialize should not double-wrap")
	}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Emit(NewStats(stats.Aggregate{}))
		}()
	}
	wg.Wait()

	if inner.maxInFlight != 1 {
		t.Errorf("maxInFlight = %d, want 1", inner.maxInFlight)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Emit(NewProgress(Progress{}))
	_ = r.Emit(NewStats(stats.Aggregate{}))
	_ = r.Emit(NewStats(stats.Aggregate{}))
	_ = r.Emit(NewComplete(Summary{}))

	if r.Count(TypeStats) != 2 {
		t.Errorf("Count(stats) = %d", r.Count(TypeStats))
	}
	types := r.Types()
	if types[0] != TypeProgress || types[3] != TypeComplete {
		t.Errorf("Types() = %v", types)
	}
	if len(r.Events()) != 4 {
		t.Errorf("Events() len = %d", len(r.Events()))
	}
}
