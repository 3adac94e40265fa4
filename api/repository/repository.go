package repository

import (
	"context"
	"errors"

	"imageUpscaler/api/models"
)

var ErrTaskNotFound = errors.New("task not found")

type Repository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
}
