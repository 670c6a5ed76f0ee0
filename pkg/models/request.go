package models

import (
	"errors"
	"fmt"
)

// ErrValidation wraps all request validation failures
var ErrValidation = errors.New("invalid job request")

// JobRequest is the submission payload accepted by the API and CLI
type JobRequest struct {
	Name              string                 `json:"name"`
	JobType           JobType                `json:"job_type"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
	Priority          int                    `json:"priority,omitempty"`
	EstimatedDuration float64                `json:"estimated_duration,omitempty"`
	MaxRetries        *int                   `json:"max_retries,omitempty"`
}

// NormalizedRequest is a JobRequest with defaults filled in
type NormalizedRequest struct {
	Name              string
	JobType           JobType
	Payload           map[string]interface{}
	Priority          int
	EstimatedDuration float64
	MaxRetries        int
}

// Validate checks the request against known job types and field ranges,
// then applies defaults. knownType reports whether a handler is registered
// for the given type; the models package does not import the handler
// registry directly.
func (r *JobRequest) Validate(knownType func(JobType) bool) (*NormalizedRequest, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if r.JobType == "" {
		return nil, fmt.Errorf("%w: job_type is required", ErrValidation)
	}
	if knownType != nil && !knownType(r.JobType) {
		return nil, fmt.Errorf("%w: unknown job_type %q", ErrValidation, r.JobType)
	}

	priority := r.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	if priority < MinPriority || priority > MaxPriority {
		return nil, fmt.Errorf("%w: priority %d out of range [%d,%d]", ErrValidation, priority, MinPriority, MaxPriority)
	}

	estimated := r.EstimatedDuration
	if estimated == 0 {
		estimated = DefaultEstimatedDuration
	}
	if estimated < 0 {
		return nil, fmt.Errorf("%w: estimated_duration must be non-negative", ErrValidation)
	}

	maxRetries := DefaultMaxRetries
	if r.MaxRetries != nil {
		if *r.MaxRetries < 0 {
			return nil, fmt.Errorf("%w: max_retries must be non-negative", ErrValidation)
		}
		maxRetries = *r.MaxRetries
	}

	return &NormalizedRequest{
		Name:              r.Name,
		JobType:           r.JobType,
		Payload:           r.Payload,
		Priority:          priority,
		EstimatedDuration: estimated,
		MaxRetries:        maxRetries,
	}, nil
}

