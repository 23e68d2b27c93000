package event

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Sink receives run events. Implementations need not be safe for concurrent use;
// wrap them with Serialize when tasks emit in parallel.
type Sink interface {
	Emit(e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event) error

// Emit calls f.
func (f SinkFunc) Emit(e Event) error { return f(e) }

type serialSink struct {
	mu    sync.Mutex
	inner Sink
}

// Serialize makes every Emit on the returned sink run under one lock, so events
// from concurrent tasks never interleave on the wire.
func Serialize(s Sink) Sink {
	if _, ok := s.(*serialSink); ok {
		return s
	}
	return &serialSink{inner: s}
}

func (s *serialSink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Emit(e)
}

// jsonLine is the wire shape of one line written by JSONLines.
type jsonLine struct {
	Event Type `json:"event"`
	Data  any  `json:"data"`
}

type jsonLinesSink struct {
	enc *json.Encoder
}

// NewJSONLines writes each event as one JSON object per line.
func NewJSONLines(w io.Writer) Sink {
	return &jsonLinesSink{enc: json.NewEncoder(w)}
}

func (s *jsonLinesSink) Emit(e Event) error {
	if err := s.enc.Encode(jsonLine{Event: e.Type, Data: e.Data}); err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return nil
}

// Recorder keeps every emitted event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
