package engine

import (
	"time"

	"matrixci/internal/trigger"
)

// Status is the terminal state of a step, job, or run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
	StatusRunning   Status = "running"
)

// StepResult records one executed (or skipped) step.
type StepResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	ExitCode  int           `json:"exit_code"`
	LogPath   string        `json:"log_path,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// JobResult records one matrix instance of a job.
type JobResult struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Matrix map[string]string `json:"matrix,omitempty"`
	Status Status            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Steps  []StepResult      `json:"steps"`
}

// RunResult aggregates a whole run. Status is success iff every executed
// step across every job exited zero.
type RunResult struct {
	RunID      string        `json:"run_id"`
	Workflow   string        `json:"workflow"`
	Event      trigger.Event `json:"event"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Jobs       []JobResult   `json:"jobs"`
}

// Failed reports whether the run ended in failure or cancellation.
func (r *RunResult) Failed() bool {
	return r.Status != StatusSuccess
}
