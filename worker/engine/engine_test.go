package engine

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

func createModelFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "EDSR_x2.pb")
	if err := os.WriteFile(path, []byte("model-weights"), 0644); err != nil {
		t.Fatalf("Failed to write model file: %v", err)
	}
	return path
}

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestEngine_Upscale_DoublesDimensions(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eng := New(createModelFile(t), 2, logger)

	input := createTestPNG(t, 300, 300)

	output, err := eng.Upscale(input, ".png")
	if err != nil {
		t.Fatalf("Upscale failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		t.Fatalf("Failed to decode output as PNG: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 600 || bounds.Dy() != 600 {
		t.Errorf("Expected dimensions 600x600, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestEngine_Upscale_JPEGFallbackForUnknownExtension(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eng := New(createModelFile(t), 2, logger)

	input := createTestPNG(t, 40, 30)

	output, err := eng.Upscale(input, ".unknown")
	if err != nil {
		t.Fatalf("Upscale failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(output))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 80 || bounds.Dy() != 60 {
		t.Errorf("Expected dimensions 80x60, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestEngine_Upscale_CorruptedInput(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eng := New(createModelFile(t), 2, logger)

	_, err := eng.Upscale([]byte("definitely not an image"), ".png")
	if err == nil {
		t.Fatal("Expected error for corrupted input, got nil")
	}
	if errors.Is(err, ErrInit) {
		t.Errorf("Decode failure must not be classified as init failure: %v", err)
	}
}

func TestEngine_EnsureInitialized_MissingModel(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eng := New("/nonexistent/model.pb", 2, logger)

	err := eng.EnsureInitialized()
	if err == nil {
		t.Fatal("Expected error for missing model file, got nil")
	}
	if !errors.Is(err, ErrInit) {
		t.Errorf("Expected ErrInit, got: %v", err)
	}

	// The failure is sticky: later calls see the same outcome.
	if err := eng.EnsureInitialized(); !errors.Is(err, ErrInit) {
		t.Errorf("Expected sticky ErrInit on second call, got: %v", err)
	}

	if _, err := eng.Upscale(createTestPNG(t, 10, 10), ".png"); !errors.Is(err, ErrInit) {
		t.Errorf("Expected Upscale to fail with ErrInit, got: %v", err)
	}
}

func TestEngine_EnsureInitialized_EmptyModel(t *testing.T) {
	logger := zaptest.NewLogger(t)

	path := filepath.Join(t.TempDir(), "empty.pb")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to write model file: %v", err)
	}

	eng := New(path, 2, logger)
	if err := eng.EnsureInitialized(); !errors.Is(err, ErrInit) {
		t.Errorf("Expected ErrInit for empty model, got: %v", err)
	}
}

func TestEngine_EnsureInitialized_Concurrent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eng := New(createModelFile(t), 2, logger)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = eng.EnsureInitialized()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Caller %d got error: %v", i, err)
		}
	}
}
