package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ErrInit marks a failed model load. It is fatal to the worker
// process: no job can be served without the model.
var ErrInit = errors.New("engine initialization failed")

// Engine is the process-wide upscaler handle. The model is loaded at
// most once, on first use; concurrent first uses block until the
// single load completes and then share the result.
//
// The resample step itself is serialized: the underlying model is not
// reentrant, and per-job decode/encode and storage I/O are allowed to
// overlap one in-flight resample.
type Engine struct {
	modelPath string
	factor    int
	logger    *zap.Logger

	once    sync.Once
	model   []byte
	initErr error

	mu sync.Mutex
}

func New(modelPath string, factor int, logger *zap.Logger) *Engine {
	if factor < 1 {
		factor = 1
	}
	return &Engine{
		modelPath: modelPath,
		factor:    factor,
		logger:    logger,
	}
}

// EnsureInitialized loads the model if it has not been loaded yet.
// The first caller pays the cost; every caller sees the same outcome.
func (e *Engine) EnsureInitialized() error {
	e.once.Do(e.load)
	return e.initErr
}

func (e *Engine) load() {
	start := time.Now()

	data, err := os.ReadFile(e.modelPath)
	if err != nil {
		e.initErr = fmt.Errorf("%w: read model %s: %v", ErrInit, e.modelPath, err)
		return
	}
	if len(data) == 0 {
		e.initErr = fmt.Errorf("%w: model file %s is empty", ErrInit, e.modelPath)
		return
	}
	e.model = data

	e.logger.Info("Model loaded",
		zap.String("path", e.modelPath),
		zap.Int("size", len(data)),
		zap.Int("factor", e.factor),
		zap.Duration("duration", time.Since(start)),
	)
}

// Upscale decodes the image, resamples it to factor times its pixel
// dimensions and re-encodes it in the format implied by ext.
func (e *Engine) Upscale(data []byte, ext string) ([]byte, error) {
	if err := e.EnsureInitialized(); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	width := src.Bounds().Dx() * e.factor
	height := src.Bounds().Dy() * e.factor

	e.mu.Lock()
	dst := imaging.Resize(src, width, height, imaging.Lanczos)
	e.mu.Unlock()

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return buf.Bytes(), nil
}
