package jobs

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// ThumbnailHandler scales an image down to fit a bounding box,
// preserving aspect ratio. PNG and JPEG are supported.
type ThumbnailHandler struct{}

// NewThumbnailHandler creates a thumbnail handler
func NewThumbnailHandler() *ThumbnailHandler {
	return &ThumbnailHandler{}
}

func (h *ThumbnailHandler) Type() models.JobType {
	return models.JobTypeThumbnail
}

// Execute reads payload "input_path", scales to "width" x "height"
// (default 128x128) and writes "output_path" (default: input path with a
// _thumb suffix)
func (h *ThumbnailHandler) Execute(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	inputPath := stringField(job.Payload, "input_path")
	if inputPath == "" {
		return nil, fmt.Errorf("input_path is required")
	}
	maxW := intField(job.Payload, "width", 128)
	maxH := intField(job.Payload, "height", 128)
	if maxW < 1 || maxH < 1 {
		return nil, fmt.Errorf("width and height must be positive")
	}

	outputPath := stringField(job.Payload, "output_path")
	if outputPath == "" {
		ext := filepath.Ext(inputPath)
		outputPath = strings.TrimSuffix(inputPath, ext) + "_thumb" + ext
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", inputPath, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", inputPath, err)
	}

	bounds := src.Bounds()
	outW, outH := fitBox(bounds.Dx(), bounds.Dy(), maxW, maxH)

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	defer out.Close()

	switch format {
	case "jpeg":
		err = jpeg.Encode(out, dst, &jpeg.Options{Quality: 85})
	default:
		err = png.Encode(out, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return map[string]interface{}{
		"input_path":  inputPath,
		"output_path": outputPath,
		"width":       outW,
		"height":      outH,
		"format":      format,
	}, nil
}

// fitBox scales (w, h) down to fit (maxW, maxH), keeping aspect ratio.
// Images already inside the box are left at their original size.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}
