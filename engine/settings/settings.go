package settings

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("settings not found")

// AIConfig is the AI section of the platform settings document. Its inner
// shape belongs to the workers; this service only checks that it is present.
type AIConfig struct {
	Preferences map[string]any `json:"preferences,omitempty"`
	Local       []any          `json:"local,omitempty"`
	External    []any          `json:"external,omitempty"`
}

type Settings struct {
	UID       string    `json:"uid"`
	AI        *AIConfig `json:"ai,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAI reports whether an AI section was configured at all.
func (s *Settings) HasAI() bool {
	return s != nil && s.AI != nil
}

// Reader loads the single settings document. A missing document yields ErrNotFound.
type Reader interface {
	Get(ctx context.Context) (*Settings, error)
}
