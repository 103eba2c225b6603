package streaming

import (
	"context"
	"time"

	"github.com/dallosh/analysis/engine/task"
)

// FrameType enumerates live stream frame categories surfaced to clients.
type FrameType string

const (
	FrameConnected FrameType = "connected"
	FrameEvent     FrameType = "event"
	FrameError     FrameType = "error"
)

// Frame is the transport representation of a task event sent to subscribers.
// ID increases monotonically per file; connected and error frames carry no ID.
type Frame struct {
	ID        int64          `json:"id,omitempty"`
	Type      FrameType      `json:"type"`
	FileID    string         `json:"file_id,omitempty"`
	Event     task.Status    `json:"event,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEventFrame(id int64, ev *task.Event, ts time.Time) Frame {
	return Frame{
		ID:        id,
		Type:      FrameEvent,
		FileID:    ev.FileID,
		Event:     ev.Event,
		Data:      ev.Data(),
		Timestamp: ts.UTC(),
	}
}

func ConnectedFrame(fileID string, ts time.Time) Frame {
	if fileID == Wildcard {
		fileID = ""
	}
	return Frame{Type: FrameConnected, FileID: fileID, Timestamp: ts.UTC()}
}

func ErrorFrame(fileID string, message string, ts time.Time) Frame {
	if fileID == Wildcard {
		fileID = ""
	}
	return Frame{
		Type:      FrameError,
		FileID:    fileID,
		Data:      map[string]any{"message": message},
		Timestamp: ts.UTC(),
	}
}

// Publisher records an ingested event in the backlog and fans it out.
type Publisher interface {
	Publish(ctx context.Context, ev *task.Event) (Frame, error)
	Replay(ctx context.Context, fileID string, afterID int64, limit int) ([]Frame, error)
}
