package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/dallosh/analysis/engine/core"
)

// FileInfo points at a derived artifact. Nil fields mean it was not produced yet.
type FileInfo struct {
	Path *string `json:"path"`
	Type *string `json:"type"`
}

func (f FileInfo) IsZero() bool {
	return f.Path == nil && f.Type == nil
}

// HasPath reports whether a physical file is referenced.
func (f FileInfo) HasPath() bool {
	return f.Path != nil && *f.Path != ""
}

type Task struct {
	UID            core.ID   `json:"uid"`
	FileID         string    `json:"file_id"`
	FilePath       string    `json:"file_path"`
	Status         Status    `json:"status"`
	Stage          Status    `json:"stage"`
	AwaitingResume bool      `json:"awaiting_resume"`
	FileCleaned    FileInfo  `json:"file_cleaned"`
	FileAnalysed   FileInfo  `json:"file_analysed"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy"`
	UpdatedAt      time.Time `json:"updatedAt"`
	UpdatedBy      string    `json:"updatedBy"`
}

// Phase decomposes the stored status into stage and interruption.
func (t *Task) Phase() Phase {
	stage := t.Stage
	if !stage.IsStage() {
		stage = StatusAdded
	}
	if t.Status.IsInterruption() {
		return Phase{Stage: stage, Interruption: t.Status}
	}
	if t.Status.IsStage() {
		return Phase{Stage: t.Status}
	}
	return Phase{Stage: stage}
}

// CanProceed gates proceed calls from the UI.
func (t *Task) CanProceed() bool {
	return t.Status == StatusAdded
}

// CreateInput carries the fields accepted when registering a task.
type CreateInput struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

func (in CreateInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.FileID) == "" {
		missing = append(missing, "file_id")
	}
	if strings.TrimSpace(in.FilePath) == "" {
		missing = append(missing, "file_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// NewTask builds a freshly added task for input.
func NewTask(in CreateInput, actor string, now time.Time) (*Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	uid, err := core.NewID()
	if err != nil {
		return nil, err
	}
	return &Task{
		UID:       uid,
		FileID:    in.FileID,
		FilePath:  in.FilePath,
		Status:    StatusAdded,
		Stage:     StatusAdded,
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
		UpdatedBy: actor,
	}, nil
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	FilePath       *string   `json:"file_path,omitempty"`
	Status         *Status   `json:"status,omitempty"`
	Stage          *Status   `json:"stage,omitempty"`
	AwaitingResume *bool     `json:"awaiting_resume,omitempty"`
	FileCleaned    *FileInfo `json:"file_cleaned,omitempty"`
	FileAnalysed   *FileInfo `json:"file_analysed,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.FilePath == nil && p.Status == nil && p.Stage == nil &&
		p.AwaitingResume == nil && p.FileCleaned == nil && p.FileAnalysed == nil
}

func (p Patch) Validate() error {
	if p.FilePath != nil && strings.TrimSpace(*p.FilePath) == "" {
		return fmt.Errorf("%w: file_path cannot be empty", ErrValidation)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	if p.Status != nil && p.Status.IsProgression() {
		return fmt.Errorf("%w: %s is not a storable status", ErrValidation, *p.Status)
	}
	if p.Stage != nil && !p.Stage.IsStage() {
		return fmt.Errorf("%w: %q is not a pipeline stage", ErrValidation, *p.Stage)
	}
	return nil
}

// StatusPatch sets status and keeps stage in step when status is a stage.
func StatusPatch(s Status) Patch {
	p := Patch{Status: &s}
	if s.IsStage() {
		stage := s
		p.Stage = &stage
	}
	return p
}

func Ptr[T any](v T) *T {
	return &v
}
