package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kailas-cloud/aivis/internal/domain/event"
)

// sseSink writes run events as Server-Sent Events and flushes after each one.
// Safe for concurrent use; keepalive comments share the lock with events.
type sseSink struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

// openStream sends the SSE headers and the 200 status. The stream stays open
// past the server write timeout.
func openStream(w http.ResponseWriter) *sseSink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()
	return &sseSink{w: w, rc: rc}
}

// Emit writes one "event: <type>\ndata: <json>\n\n" frame.
func (s *sseSink) Emit(e event.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return fmt.Errorf("write %s event: %w", e.Type, err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flush %s event: %w", e.Type, err)
	}
	return nil
}

func (s *sseSink) comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	return s.rc.Flush() //nolint:wrapcheck // same flush as Emit
}

// keepalive writes a comment every interval until ctx is done or a write fails.
func (s *sseSink) keepalive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.comment("keepalive"); err != nil {
				return
			}
		}
	}
}
