package jobs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// WordCountHandler counts words, lines and characters in a text file
type WordCountHandler struct{}

// NewWordCountHandler creates a word count handler
func NewWordCountHandler() *WordCountHandler {
	return &WordCountHandler{}
}

func (h *WordCountHandler) Type() models.JobType {
	return models.JobTypeWordCount
}

// Execute reads payload "file_path" and reports words, lines and chars
func (h *WordCountHandler) Execute(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	path := stringField(job.Payload, "file_path")
	if path == "" {
		return nil, fmt.Errorf("file_path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	text := string(data)
	lines := strings.Count(text, "\n")
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		lines++
	}

	return map[string]interface{}{
		"file_path": path,
		"words":     len(strings.Fields(text)),
		"lines":     lines,
		"chars":     len(text),
	}, nil
}
