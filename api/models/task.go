package models

import (
	"time"
)

type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusStarted TaskStatus = "STARTED"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
)

// Terminal reports whether a status can never change again.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Failure describes why a task ended in StatusFailure. Trace is kept
// for operators only and is never serialized to clients.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Trace   string `json:"-"`
}

type Task struct {
	ID               string
	TraceID          string
	InputBlob        string
	OriginalFilename string
	Status           TaskStatus
	Result           *string
	Failure          *Failure
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// StatusPayload is the shape cached in Redis and returned to polling
// clients.
type StatusPayload struct {
	Status  TaskStatus `json:"status"`
	Result  *string    `json:"result"`
	Failure *Failure   `json:"failure,omitempty"`
}

func (t *Task) StatusPayload() StatusPayload {
	return StatusPayload{
		Status:  t.Status,
		Result:  t.Result,
		Failure: t.Failure,
	}
}
