package dto

import (
	"errors"

	"imageUpscaler/api/models"
)

var ErrTaskNotFound = errors.New("task not found")

type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

type StatusResponse struct {
	Status  string          `json:"status"`
	Result  *string         `json:"result"`
	Failure *models.Failure `json:"failure,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
