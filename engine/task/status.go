package task

import "fmt"

// Status is the wire value of a task state as stored and exchanged with workers.
type Status string

const (
	StatusAdded                   Status = "added"
	StatusInQueue                 Status = "in_queue"
	StatusReadingDataset          Status = "reading_dataset"
	StatusReadingDatasetDone      Status = "reading_dataset_done"
	StatusProcessCleaning         Status = "process_cleaning"
	StatusProcessCleaningDone     Status = "process_cleaning_done"
	StatusSendingToLLM            Status = "sending_to_llm"
	StatusSendingToLLMProgression Status = "sending_to_llm_progression"
	StatusSendingToLLMDone        Status = "sending_to_llm_done"
	StatusAppendingColumns        Status = "appending_collumns"
	StatusAppendingColumnsDone    Status = "appending_collumns_done"
	StatusSavingFile              Status = "saving_file"
	StatusSavingFileDone          Status = "saving_file_done"
	StatusDone                    Status = "done"

	StatusOnError Status = "on_error"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// pipeline lists the forward stages in order. The LLM progression
// announcement never becomes a stage.
var pipeline = []Status{
	StatusAdded,
	StatusInQueue,
	StatusReadingDataset,
	StatusReadingDatasetDone,
	StatusProcessCleaning,
	StatusProcessCleaningDone,
	StatusSendingToLLM,
	StatusSendingToLLMDone,
	StatusAppendingColumns,
	StatusAppendingColumnsDone,
	StatusSavingFile,
	StatusSavingFileDone,
	StatusDone,
}

var stageOrder = func() map[Status]int {
	m := make(map[Status]int, len(pipeline))
	for i, s := range pipeline {
		m[s] = i
	}
	return m
}()

// Pipeline returns the forward stages in order.
func Pipeline() []Status {
	out := make([]Status, len(pipeline))
	copy(out, pipeline)
	return out
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	return s.IsStage() || s.IsInterruption() || s.IsProgression()
}

// IsStage reports whether s is one of the forward pipeline stages.
func (s Status) IsStage() bool {
	_, ok := stageOrder[s]
	return ok
}

// IsInterruption reports whether s is a side state that suspends the pipeline.
func (s Status) IsInterruption() bool {
	switch s {
	case StatusOnError, StatusPaused, StatusStopped:
		return true
	default:
		return false
	}
}

func (s Status) IsProgression() bool {
	return s == StatusSendingToLLMProgression
}

// IsTerminal reports whether s ends the pipeline. Only a retried stopped
// task may leave it.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusStopped
}

// Recoverable reports whether an explicit retry or resume can leave s.
func (s Status) Recoverable() bool {
	return s == StatusOnError || s == StatusPaused
}

// Order returns the pipeline position of a stage, or -1 for anything else.
func (s Status) Order() int {
	if i, ok := stageOrder[s]; ok {
		return i
	}
	return -1
}

// Phase is the decomposed view of a task status: the last pipeline stage
// reached plus the interruption currently suspending it, if any.
type Phase struct {
	Stage        Status `json:"stage"`
	Interruption Status `json:"interruption,omitempty"`
}

func (p Phase) Interrupted() bool {
	return p.Interruption != ""
}

// Status folds the phase back into the single wire value.
func (p Phase) Status() Status {
	if p.Interrupted() {
		return p.Interruption
	}
	return p.Stage
}
