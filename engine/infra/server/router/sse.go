package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// SSEStream writes Server-Sent Events frames to a flushing response writer.
type SSEStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// StartSSE prepares w for streaming. It returns nil when w cannot flush.
func StartSSE(w http.ResponseWriter) *SSEStream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEStream{w: w, flusher: flusher}
}

// WriteEvent emits one frame. A zero id omits the id field.
func (s *SSEStream) WriteEvent(id int64, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sse data: %w", err)
	}
	var b strings.Builder
	if id > 0 {
		b.WriteString("id: ")
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('\n')
	}
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(payload)
	b.WriteString("\n\n")
	return s.write(b.String())
}

// WriteHeartbeat emits a comment line that keeps intermediaries from timing out.
func (s *SSEStream) WriteHeartbeat() error {
	return s.write(": ping\n\n")
}

func (s *SSEStream) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// LastEventID reads the resume point from the Last-Event-ID header or the
// last_event_id query parameter. The bool reports whether one was sent.
func LastEventID(r *http.Request) (int64, bool, error) {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("last_event_id"))
	}
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse last event id: %w", err)
	}
	if id < 0 {
		return 0, false, errors.New("last event id must not be negative")
	}
	return id, true, nil
}
