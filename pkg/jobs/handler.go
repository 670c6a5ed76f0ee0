package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// Handler executes one job type. Execute returns the result map stored on
// the job; an error marks the attempt failed and triggers retry handling.
type Handler interface {
	// Type returns the job type this handler serves
	Type() models.JobType
	// Execute runs the job to completion
	Execute(ctx context.Context, job *models.Job) (map[string]interface{}, error)
}

// Registry maps job types to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.JobType]Handler
}

// NewRegistry returns a registry with the built-in handlers installed
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[models.JobType]Handler)}
	r.Register(NewSleepHandler())
	r.Register(NewWordCountHandler())
	r.Register(NewThumbnailHandler())
	return r
}

// Register installs a handler, replacing any previous one for the type
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get returns the handler for a job type
func (r *Registry) Get(t models.JobType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type %q", t)
	}
	return h, nil
}

// Known reports whether a handler exists for the type
func (r *Registry) Known(t models.JobType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Types lists the registered job types
func (r *Registry) Types() []models.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// payload field helpers; JSON numbers decode as float64

func floatField(payload map[string]interface{}, key string, def float64) float64 {
	if payload == nil {
		return def
	}
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intField(payload map[string]interface{}, key string, def int) int {
	if payload == nil {
		return def
	}
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
