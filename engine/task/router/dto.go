package tkrouter

import (
	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/engine/task/uc"
)

// ProceedRequest is the body of POST /tasks/proceed.
type ProceedRequest struct {
	FileID   string `json:"fileId"   binding:"required" example:"65f1c0a2e4b0a1b2c3d4e5f6"`
	FilePath string `json:"filePath" binding:"required" example:"datasets/reviews.csv"`
}

func (r ProceedRequest) Input() uc.ProceedInput {
	return uc.ProceedInput{FileID: r.FileID, FilePath: r.FilePath}
}

// RetryRequest is the body of POST /tasks/retry.
type RetryRequest struct {
	FileID        string `json:"fileId"        binding:"required"`
	FilePath      string `json:"filePath"      binding:"required"`
	LastEventStep string `json:"lastEventStep" binding:"required" example:"sending_to_llm"`
}

func (r RetryRequest) Input() uc.RetryInput {
	return uc.RetryInput{
		FileID:        r.FileID,
		FilePath:      r.FilePath,
		LastEventStep: task.Status(r.LastEventStep),
	}
}

// HandleProcessRequest is the body of POST /tasks/handle-process.
type HandleProcessRequest struct {
	FileID string `json:"fileId" binding:"required"`
	Event  string `json:"event"  binding:"required,oneof=pause resume stop" example:"pause"`
}

// FileRequest names a task by its dataset file.
type FileRequest struct {
	FileID string `json:"fileId" binding:"required"`
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	FileID   string `json:"fileId"   binding:"required"`
	FilePath string `json:"filePath" binding:"required"`
}

// FileInfoDTO points at a derived artifact.
type FileInfoDTO struct {
	Path *string `json:"path"`
	Type *string `json:"type"`
}

func (f *FileInfoDTO) toDomain() *task.FileInfo {
	if f == nil {
		return nil
	}
	return &task.FileInfo{Path: f.Path, Type: f.Type}
}

// UpdateTaskRequest is the body of PATCH /tasks/:uid. Absent fields are kept.
type UpdateTaskRequest struct {
	FilePath       *string      `json:"filePath,omitempty"`
	Status         *string      `json:"status,omitempty"`
	Stage          *string      `json:"stage,omitempty"`
	AwaitingResume *bool        `json:"awaitingResume,omitempty"`
	FileCleaned    *FileInfoDTO `json:"fileCleaned,omitempty"`
	FileAnalysed   *FileInfoDTO `json:"fileAnalysed,omitempty"`
}

func (r UpdateTaskRequest) Patch() task.Patch {
	p := task.Patch{
		FilePath:       r.FilePath,
		AwaitingResume: r.AwaitingResume,
		FileCleaned:    r.FileCleaned.toDomain(),
		FileAnalysed:   r.FileAnalysed.toDomain(),
	}
	if r.Status != nil {
		p.Status = task.Ptr(task.Status(*r.Status))
	}
	if r.Stage != nil {
		p.Stage = task.Ptr(task.Status(*r.Stage))
	}
	return p
}

// TaskListResponse is the data of GET /tasks.
type TaskListResponse struct {
	Tasks  []*task.Task `json:"tasks"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// CommandResponse acknowledges a dispatched command.
type CommandResponse struct {
	FileID string `json:"fileId"`
	Event  string `json:"event"`
}
