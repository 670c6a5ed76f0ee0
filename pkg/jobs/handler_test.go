package jobs

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()

	for _, jt := range []models.JobType{models.JobTypeSleep, models.JobTypeWordCount, models.JobTypeThumbnail} {
		if !r.Known(jt) {
			t.Errorf("Known(%s) = false, want true", jt)
		}
		if _, err := r.Get(jt); err != nil {
			t.Errorf("Get(%s) error = %v", jt, err)
		}
	}

	if r.Known("transcode") {
		t.Error("Known(transcode) = true, want false")
	}
	if _, err := r.Get("transcode"); err == nil {
		t.Error("Get(transcode) should fail")
	}
}

func TestSleepHandler(t *testing.T) {
	h := NewSleepHandler()
	job := &models.Job{
		JobType: models.JobTypeSleep,
		Payload: map[string]interface{}{"duration": 0.05},
	}

	start := time.Now()
	result, err := h.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("sleep returned too early")
	}
	if result["slept"] != 0.05 {
		t.Errorf("result = %v, want slept 0.05", result)
	}
}

func TestSleepHandlerDefaultsToEstimatedDuration(t *testing.T) {
	h := NewSleepHandler()
	job := &models.Job{JobType: models.JobTypeSleep, EstimatedDuration: 0.02}

	result, err := h.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result["slept"] != 0.02 {
		t.Errorf("result = %v, want slept 0.02", result)
	}
}

func TestSleepHandlerAlwaysFails(t *testing.T) {
	h := NewSleepHandler()
	job := &models.Job{
		JobType: models.JobTypeSleep,
		Payload: map[string]interface{}{"duration": 0.0, "fail_probability": 1.0},
	}

	if _, err := h.Execute(context.Background(), job); err == nil {
		t.Error("expected injected failure with fail_probability 1.0")
	}
}

func TestSleepHandlerConcurrentExecutors(t *testing.T) {
	// One registry-held handler is shared by every pool executor, so
	// failure injection must be safe under concurrent Execute calls
	h := NewSleepHandler()
	job := &models.Job{
		JobType: models.JobTypeSleep,
		Payload: map[string]interface{}{"duration": 0.0, "fail_probability": 0.5},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Execute(context.Background(), job)
			}
		}()
	}
	wg.Wait()
}

func TestSleepHandlerHonorsCancellation(t *testing.T) {
	h := NewSleepHandler()
	job := &models.Job{
		JobType: models.JobTypeSleep,
		Payload: map[string]interface{}{"duration": 10.0},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := h.Execute(ctx, job)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Execute ignored cancellation")
	}
}

func TestWordCountHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txt")
	content := "the quick brown fox\njumps over the lazy dog\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write sample: %v", err)
	}

	h := NewWordCountHandler()
	job := &models.Job{
		JobType: models.JobTypeWordCount,
		Payload: map[string]interface{}{"file_path": path},
	}

	result, err := h.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result["words"] != 9 {
		t.Errorf("words = %v, want 9", result["words"])
	}
	if result["lines"] != 2 {
		t.Errorf("lines = %v, want 2", result["lines"])
	}
	if result["chars"] != len(content) {
		t.Errorf("chars = %v, want %d", result["chars"], len(content))
	}
}

func TestWordCountHandlerErrors(t *testing.T) {
	h := NewWordCountHandler()

	job := &models.Job{JobType: models.JobTypeWordCount}
	if _, err := h.Execute(context.Background(), job); err == nil {
		t.Error("expected error for missing file_path")
	}

	job.Payload = map[string]interface{}{"file_path": "/nonexistent/file.txt"}
	if _, err := h.Execute(context.Background(), job); err == nil {
		t.Error("expected error for unreadable file")
	}
}

func TestThumbnailHandler(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.png")
	writeTestPNG(t, inputPath, 400, 200)

	h := NewThumbnailHandler()
	job := &models.Job{
		JobType: models.JobTypeThumbnail,
		Payload: map[string]interface{}{"input_path": inputPath, "width": 100, "height": 100},
	}

	result, err := h.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// 400x200 into 100x100 keeps the 2:1 aspect ratio
	if result["width"] != 100 || result["height"] != 50 {
		t.Errorf("dimensions = %vx%v, want 100x50", result["width"], result["height"])
	}

	outputPath := result["output_path"].(string)
	if outputPath != filepath.Join(dir, "input_thumb.png") {
		t.Errorf("output_path = %s, want _thumb suffix", outputPath)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("thumbnail not decodable: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("written size = %v, want 100x50", img.Bounds())
	}
}

func TestThumbnailHandlerErrors(t *testing.T) {
	h := NewThumbnailHandler()

	job := &models.Job{JobType: models.JobTypeThumbnail}
	if _, err := h.Execute(context.Background(), job); err == nil {
		t.Error("expected error for missing input_path")
	}

	job.Payload = map[string]interface{}{"input_path": "/nonexistent.png"}
	if _, err := h.Execute(context.Background(), job); err == nil {
		t.Error("expected error for missing input file")
	}
}

func TestFitBox(t *testing.T) {
	tests := []struct {
		name             string
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{"wide image", 400, 200, 100, 100, 100, 50},
		{"tall image", 200, 400, 100, 100, 50, 100},
		{"already fits", 50, 50, 100, 100, 50, 50},
		{"exact fit", 100, 100, 100, 100, 100, 100},
		{"extreme ratio never hits zero", 10000, 10, 100, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitBox(tt.w, tt.h, tt.maxW, tt.maxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("fitBox(%d,%d,%d,%d) = %d,%d, want %d,%d",
					tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
}
