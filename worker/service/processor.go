package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"imageUpscaler/worker/cache"
	"imageUpscaler/worker/kafka"
	"imageUpscaler/worker/repository"
	"imageUpscaler/worker/storage"
)

// Failure kinds recorded on the task when the pipeline ends badly.
const (
	KindMissingInput   = "MissingInput"
	KindTransformError = "TransformError"
	KindStorageError   = "StorageError"
)

type Failure struct {
	Kind    string
	Message string
	Trace   string
}

type Upscaler interface {
	EnsureInitialized() error
	Upscale(data []byte, ext string) ([]byte, error)
}

type StatusWriter interface {
	Set(ctx context.Context, taskID string, payload cache.StatusPayload) error
}

// Processor runs one job through the pipeline:
// claim -> fetch -> transform -> store -> clean -> record outcome.
//
// Stage errors are classified and written to the task record as the
// terminal FAILURE state; they are never pushed back through the
// broker. The only error Process returns is an unusable engine or an
// unreachable record store before the job was claimed — those leave
// the message unacknowledged for redelivery.
type Processor struct {
	repo   repository.Repository
	blobs  storage.BlobStore
	engine Upscaler
	status StatusWriter
	logger *zap.Logger
}

func NewProcessor(repo repository.Repository, blobs storage.BlobStore, engine Upscaler, status StatusWriter, logger *zap.Logger) *Processor {
	return &Processor{
		repo:   repo,
		blobs:  blobs,
		engine: engine,
		status: status,
		logger: logger,
	}
}

func (p *Processor) Process(ctx context.Context, msg *kafka.TaskMessage) error {
	log := p.logger.With(
		zap.String("task_id", msg.TaskID),
		zap.String("trace_id", msg.TraceID),
	)

	// The engine is checked before the job is claimed: initialization
	// failure is fatal to the process, never a task failure, and no
	// task may be marked STARTED if the engine cannot serve it.
	if err := p.engine.EnsureInitialized(); err != nil {
		return err
	}

	if err := p.repo.MarkStarted(ctx, msg.TaskID); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, repository.ErrTaskNotFound) {
			log.Warn("Abandoning job", zap.Error(err))
			return nil
		}
		return fmt.Errorf("claim task: %w", err)
	}
	p.setStatus(ctx, msg.TaskID, cache.StatusPayload{Status: "STARTED"}, log)

	result, failure := p.run(ctx, msg, log)

	if failure != nil {
		if err := p.repo.MarkFailure(ctx, msg.TaskID, failure.Kind, failure.Message, failure.Trace); err != nil {
			// The transition may already have been applied; do not
			// requeue a possibly-committed side effect.
			log.Error("Failed to record task failure", zap.Error(err))
			return nil
		}
		p.setStatus(ctx, msg.TaskID, cache.StatusPayload{
			Status:  "FAILURE",
			Failure: &cache.Failure{Kind: failure.Kind, Message: failure.Message},
		}, log)

		log.Info("Task failed",
			zap.String("kind", failure.Kind),
			zap.String("message", failure.Message),
		)
		return nil
	}

	if err := p.repo.MarkSuccess(ctx, msg.TaskID, result); err != nil {
		log.Error("Failed to record task success", zap.Error(err))
		return nil
	}
	p.setStatus(ctx, msg.TaskID, cache.StatusPayload{Status: "SUCCESS", Result: &result}, log)

	log.Info("Task completed", zap.String("result", result))
	return nil
}

// run executes fetch/transform/store and returns either the output
// blob name or a classified failure. The input blob is deleted once a
// transformation was attempted, on both paths; that cleanup only logs
// its own errors so it can never mask the pipeline outcome.
func (p *Processor) run(ctx context.Context, msg *kafka.TaskMessage, log *zap.Logger) (string, *Failure) {
	input, err := p.blobs.Get(ctx, msg.BlobName)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return "", &Failure{
				Kind:    KindMissingInput,
				Message: fmt.Sprintf("input blob %s not found", msg.BlobName),
			}
		}
		return "", &Failure{
			Kind:    KindStorageError,
			Message: fmt.Sprintf("fetch input blob: %v", err),
		}
	}

	defer func() {
		if err := p.blobs.Delete(ctx, msg.BlobName); err != nil {
			log.Warn("Failed to delete input blob",
				zap.String("blob", msg.BlobName),
				zap.Error(err),
			)
		}
	}()

	output, trace, err := p.transform(input)
	if err != nil {
		return "", &Failure{
			Kind:    KindTransformError,
			Message: err.Error(),
			Trace:   trace,
		}
	}

	outBlob := storage.Blob{
		Name: storage.GenerateName(input.Meta),
		Data: output,
		Meta: input.Meta,
	}
	if err := p.blobs.Put(ctx, outBlob); err != nil {
		return "", &Failure{
			Kind:    KindStorageError,
			Message: fmt.Sprintf("store output blob: %v", err),
		}
	}

	return outBlob.Name, nil
}

// transform invokes the engine, converting panics from the decode or
// resample path into ordinary errors with a captured stack.
func (p *Processor) transform(input storage.Blob) (out []byte, trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace = string(debug.Stack())
			err = fmt.Errorf("transform panic: %v", r)
		}
	}()

	out, err = p.engine.Upscale(input.Data, storage.ExtensionFor(input.Meta))
	return out, "", err
}

func (p *Processor) setStatus(ctx context.Context, taskID string, payload cache.StatusPayload, log *zap.Logger) {
	if err := p.status.Set(ctx, taskID, payload); err != nil {
		log.Warn("Failed to update status cache", zap.Error(err))
	}
}
