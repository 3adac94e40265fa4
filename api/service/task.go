package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"imageUpscaler/api/dto"
	"imageUpscaler/api/kafka"
	"imageUpscaler/api/models"
	"imageUpscaler/api/repository"
	"imageUpscaler/api/storage"
)

type StatusCache interface {
	Get(ctx context.Context, taskID string) (*models.StatusPayload, error)
	Set(ctx context.Context, taskID string, payload models.StatusPayload) error
}

type BlobStore interface {
	Put(ctx context.Context, blob storage.Blob) error
	Get(ctx context.Context, name string) (storage.Blob, error)
}

// TaskService is the submission/status façade. It never runs the
// transformation itself: submit stores the input blob, creates the
// task record and enqueues the job, in that order.
type TaskService struct {
	repo     repository.Repository
	blobs    BlobStore
	cache    StatusCache
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewTaskService(
	repo repository.Repository,
	blobs BlobStore,
	cache StatusCache,
	producer kafka.Producer,
	topic string,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		repo:     repo,
		blobs:    blobs,
		cache:    cache,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (s *TaskService) Submit(ctx context.Context, traceID string, data []byte, filename, contentType string) (*dto.SubmitResponse, error) {
	meta := storage.Metadata{
		ContentType: contentType,
		Filename:    filename,
	}

	blob := storage.Blob{
		Name: storage.GenerateName(meta),
		Data: data,
		Meta: meta,
	}
	if err := s.blobs.Put(ctx, blob); err != nil {
		return nil, err
	}

	task := &models.Task{
		TraceID:          traceID,
		InputBlob:        blob.Name,
		OriginalFilename: filename,
		Status:           models.StatusPending,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	// Safe to cache PENDING here: the worker cannot have seen the job
	// yet, it is enqueued below. Cache write failures only cost a
	// later database read.
	if err := s.cache.Set(ctx, task.ID, task.StatusPayload()); err != nil {
		s.logger.Warn("Failed to cache task status",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	msg := &kafka.TaskMessage{
		TaskID:   task.ID,
		TraceID:  traceID,
		BlobName: blob.Name,
	}
	if err := s.producer.SendTaskMessage(ctx, s.topic, msg); err != nil {
		return nil, err
	}

	return &dto.SubmitResponse{TaskID: task.ID}, nil
}

func (s *TaskService) Status(ctx context.Context, taskID string) (*dto.StatusResponse, error) {
	if payload, err := s.cache.Get(ctx, taskID); err == nil {
		return &dto.StatusResponse{
			Status:  string(payload.Status),
			Result:  payload.Result,
			Failure: payload.Failure,
		}, nil
	}

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	// Only terminal snapshots are written back: they are immutable, so
	// the write can never race a newer state. Re-caching PENDING or
	// STARTED would let a slow read overwrite the worker's terminal
	// cache entry and make a later poll regress.
	if task.Status.Terminal() {
		if err := s.cache.Set(ctx, task.ID, task.StatusPayload()); err != nil {
			s.logger.Warn("Failed to cache task status",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
	}

	return &dto.StatusResponse{
		Status:  string(task.Status),
		Result:  task.Result,
		Failure: task.Failure,
	}, nil
}

func (s *TaskService) FetchResult(ctx context.Context, name string) (storage.Blob, error) {
	return s.blobs.Get(ctx, name)
}
