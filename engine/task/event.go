package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Routing keys of commands published to workers.
const (
	RouteProceedTask   = "proceed_task"
	RouteRetryStep     = "retry_step"
	RouteHandleProcess = "handle_process"
)

// IsCommandRoute reports whether key names a command rather than an event.
func IsCommandRoute(key string) bool {
	switch key {
	case RouteProceedTask, RouteRetryStep, RouteHandleProcess:
		return true
	default:
		return false
	}
}

// EventRoutes returns every routing key a worker may report on.
func EventRoutes() []string {
	keys := make([]string, 0, len(pipeline)+4)
	for _, s := range pipeline {
		keys = append(keys, s.String())
	}
	return append(keys,
		StatusSendingToLLMProgression.String(),
		StatusOnError.String(),
		StatusPaused.String(),
		StatusStopped.String(),
	)
}

type ProceedCommand struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

type RetryCommand struct {
	FileID        string `json:"file_id"`
	FilePath      string `json:"file_path"`
	LastEventStep Status `json:"last_event_step"`
}

// ProcessAction is the control verb of a handle_process command.
type ProcessAction string

const (
	ActionPause  ProcessAction = "pause"
	ActionResume ProcessAction = "resume"
	ActionStop   ProcessAction = "stop"
)

func ParseProcessAction(s string) (ProcessAction, error) {
	a := ProcessAction(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: event must be one of pause, resume, stop", ErrValidation)
	}
	return a, nil
}

func (a ProcessAction) Valid() bool {
	switch a {
	case ActionPause, ActionResume, ActionStop:
		return true
	default:
		return false
	}
}

type HandleProcessCommand struct {
	FileID string        `json:"file_id"`
	Event  ProcessAction `json:"event"`
}

// Event is a progress or completion report emitted by a worker.
type Event struct {
	FileID       string    `json:"file_id"`
	Event        Status    `json:"event"`
	Pagination   *int      `json:"pagination,omitempty"`
	Index        *int      `json:"index,omitempty"`
	Total        *int      `json:"total,omitempty"`
	FileCleaned  *FileInfo `json:"file_cleaned,omitempty"`
	FileAnalysed *FileInfo `json:"file_analysed,omitempty"`
}

// DecodeEvent parses a worker message body. Any failure wraps ErrMalformedEvent.
func DecodeEvent(body []byte) (*Event, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	ev.FileID = strings.TrimSpace(ev.FileID)
	if ev.FileID == "" {
		return nil, fmt.Errorf("%w: missing file_id", ErrMalformedEvent)
	}
	if !ev.Event.Valid() {
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedEvent, ev.Event)
	}
	return &ev, nil
}

// Data returns the optional payload fields surfaced to live subscribers.
func (e *Event) Data() map[string]any {
	data := make(map[string]any)
	if e.Pagination != nil {
		data["pagination"] = *e.Pagination
	}
	if e.Index != nil {
		data["index"] = *e.Index
	}
	if e.Total != nil {
		data["total"] = *e.Total
	}
	if e.FileCleaned != nil {
		data["file_cleaned"] = *e.FileCleaned
	}
	if e.FileAnalysed != nil {
		data["file_analysed"] = *e.FileAnalysed
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
