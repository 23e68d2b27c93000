package aivis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"
)

// StartRun submits a run and returns its event stream once the server has admitted it.
// Rejections (both slots taken, bad domain ID) come back as *APIError. Problems with
// the items themselves arrive as a fatal error event on the stream.
func (c *Client) StartRun(ctx context.Context, domainID int64, in RunRequest) (*Stream, error) {
	start := time.Now()

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/v1/domains/%d/runs", domainID), nil, in)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		err = fmt.Errorf("aivis: start run: %w", err)
		c.obs.observe("start_run", start, err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err = decodeError(resp)
		_ = resp.Body.Close()
		c.obs.observe("start_run", start, err)
		return nil, err
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		_ = resp.Body.Close()
		err = fmt.Errorf("aivis: start run: unexpected content type %q", resp.Header.Get("Content-Type"))
		c.obs.observe("start_run", start, err)
		return nil, err
	}

	c.obs.observe("start_run", start, nil)
	return &Stream{
		body:  resp.Body,
		rd:    bufio.NewReader(resp.Body),
		obs:   c.obs,
		start: start,
	}, nil
}

// Run starts a run and feeds every event to fn until the stream ends. It returns the
// complete summary, a *RunError for a fatal error event, or the error fn returned.
// fn may be nil.
func (c *Client) Run(
	ctx context.Context, domainID int64, in RunRequest, fn func(Event) error,
) (Summary, error) {
	stream, err := c.StartRun(ctx, domainID, in)
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = stream.Close() }()

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return Summary{}, fmt.Errorf("aivis: stream ended before the run completed: %w", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return Summary{}, err
		}
		if fn != nil {
			if err := fn(ev); err != nil {
				return Summary{}, err
			}
		}
		switch {
		case ev.Complete != nil:
			return *ev.Complete, nil
		case ev.Terminal():
			return Summary{}, &RunError{Failure: *ev.Error}
		}
	}
}

// Stream reads server-sent events from a run. Not safe for concurrent use.
type Stream struct {
	body  io.ReadCloser
	rd    *bufio.Reader
	obs   *observer
	start time.Time

	done      bool
	err       error
	closeOnce sync.Once
}

// Next blocks until the next event arrives. It returns io.EOF after the terminal
// event or when the server closes the stream. Keepalive comments and unknown event
// types are skipped.
func (s *Stream) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	var (
		typ  EventType
		data strings.Builder
		has  bool
	)
	for {
		line, err := s.rd.ReadString('\n')
		if err != nil {
			// A half-written event at EOF is dropped.
			s.done = true
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			s.err = fmt.Errorf("aivis: read stream: %w", err)
			return Event{}, s.err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if !has {
				continue
			}
			ev, err := decodeEvent(typ, []byte(data.String()))
			typ, has = "", false
			data.Reset()
			if errors.Is(err, errUnknownEvent) {
				continue
			}
			if err != nil {
				s.done = true
				s.err = err
				return Event{}, err
			}
			s.obs.event(ev.Type)
			if ev.Terminal() {
				s.done = true
				if ev.Error != nil {
					s.err = &RunError{Failure: *ev.Error}
				}
			}
			return ev, nil
		case strings.HasPrefix(line, ":"):
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			typ = EventType(value)
		case "data":
			if has {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			has = true
		}
	}
}

// Close releases the connection. Closing before the terminal event is a disconnect:
// the server stops scheduling batches and frees the admission slot.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
		s.obs.observe("run", s.start, s.err)
	})
	return err
}
