package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// SleepHandler burns wall-clock time. Used for load tests and policy
// demonstrations; "fail_probability" injects transient failures to
// exercise the retry path.
type SleepHandler struct{}

// NewSleepHandler creates a sleep handler
func NewSleepHandler() *SleepHandler {
	return &SleepHandler{}
}

func (h *SleepHandler) Type() models.JobType {
	return models.JobTypeSleep
}

// Execute sleeps for payload "duration" seconds (default: the job's
// estimated duration), honoring context cancellation
func (h *SleepHandler) Execute(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	duration := floatField(job.Payload, "duration", job.EstimatedDuration)
	if duration < 0 {
		return nil, fmt.Errorf("duration must be non-negative, got %v", duration)
	}

	select {
	case <-time.After(time.Duration(duration * float64(time.Second))):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The package-level source is safe for concurrent executors
	if p := floatField(job.Payload, "fail_probability", 0); p > 0 && rand.Float64() < p {
		return nil, fmt.Errorf("injected failure (p=%.2f)", p)
	}

	return map[string]interface{}{"slept": duration}, nil
}
