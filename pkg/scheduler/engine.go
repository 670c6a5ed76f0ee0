package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/metrics"
	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

// EngineConfig tunes the scheduler loop
type EngineConfig struct {
	TickInterval  time.Duration // how often the engine wakes up
	BatchSize     int           // PENDING jobs claimed per tick
	DispatchLimit int           // jobs dispatched per tick, 0 drains the policy
	DefaultPolicy string        // policy installed when the cell is empty
}

// Engine runs the scheduling loop: it claims PENDING jobs from the store,
// orders them through the active policy and dispatches them to the ready
// queue. One engine instance runs per deployment.
type Engine struct {
	store     store.Store
	transport queue.Transport
	cfg       EngineConfig
	logger    *logging.Logger
	metrics   *metrics.Collector

	mu     sync.Mutex // guards policy
	policy Policy

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wakeCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine creates a scheduler engine
func NewEngine(s store.Store, t queue.Transport, cfg EngineConfig, logger *logging.Logger, m *metrics.Collector) (*Engine, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = models.PolicyFCFS
	}
	if !KnownPolicy(cfg.DefaultPolicy) {
		return nil, fmt.Errorf("unknown default policy: %q", cfg.DefaultPolicy)
	}

	policy, err := NewPolicy(cfg.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     s,
		transport: t,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		policy:    policy,
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		wakeCh:    make(chan struct{}, 1),
	}, nil
}

// Start recovers in-flight jobs, installs the active policy and launches
// the tick loop
func (e *Engine) Start() error {
	swept, err := e.store.Recover()
	if err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}
	if swept > 0 {
		e.logger.Warn("Recovered in-flight jobs back to PENDING", map[string]interface{}{"count": swept})
	}

	// Install the default policy if nothing has been chosen yet
	name, err := e.transport.ActivePolicy(e.ctx)
	if err != nil {
		return fmt.Errorf("failed to read active policy: %w", err)
	}
	if name == "" {
		name = e.cfg.DefaultPolicy
		if err := e.transport.SetPolicy(e.ctx, name); err != nil {
			return fmt.Errorf("failed to install default policy: %w", err)
		}
	}
	e.syncPolicy(name)

	e.wg.Add(1)
	go e.loop()

	e.logger.Info("Scheduler engine started", map[string]interface{}{
		"policy":    e.ActivePolicyName(),
		"tick":      e.cfg.TickInterval.String(),
		"batch":     e.cfg.BatchSize,
		"recovered": swept,
	})
	return nil
}

// Stop terminates the tick loop and waits for it to drain
func (e *Engine) Stop() {
	close(e.stopCh)
	e.cancel()
	e.wg.Wait()
	e.logger.Info("Scheduler engine stopped")
}

// Wake nudges the engine outside its tick interval, used after a
// submission burst. Non-blocking; a pending wakeup is enough.
func (e *Engine) Wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// ActivePolicyName returns the name of the policy currently installed
func (e *Engine) ActivePolicyName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.Name()
}

// QueuedJobs returns the number of jobs held by the active policy
func (e *Engine) QueuedJobs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.Size()
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
		case <-e.wakeCh:
		}
		e.Tick()
	}
}

// Tick runs one scheduling round. Exported so tests can drive the engine
// without the timer.
func (e *Engine) Tick() {
	e.checkPolicyChange()
	e.ingest()
	e.dispatch()

	if depth, err := e.transport.QueueDepth(e.ctx); err == nil {
		e.metrics.SetQueueDepth(float64(depth))
	}
}

// checkPolicyChange reloads the policy cell and migrates queued jobs
// when an operator switched policies
func (e *Engine) checkPolicyChange() {
	name, err := e.transport.ActivePolicy(e.ctx)
	if err != nil {
		e.logger.Warn("Failed to read active policy", map[string]interface{}{"error": err.Error()})
		return
	}
	if name == "" || name == e.ActivePolicyName() {
		return
	}
	if !KnownPolicy(name) {
		e.logger.Warn("Ignoring unknown policy in transport", map[string]interface{}{"policy": name})
		return
	}
	e.syncPolicy(name)
}

// syncPolicy installs the named policy, carrying queued jobs over
func (e *Engine) syncPolicy(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.policy != nil && e.policy.Name() == name {
		e.metrics.SetActivePolicy(name)
		return
	}

	next, err := NewPolicy(name)
	if err != nil {
		e.logger.Warn("Failed to build policy", map[string]interface{}{"policy": name, "error": err.Error()})
		return
	}

	var migrated int
	if e.policy != nil {
		for _, job := range e.policy.Clear() {
			next.Offer(job)
			migrated++
		}
	}
	old := ""
	if e.policy != nil {
		old = e.policy.Name()
	}
	e.policy = next
	e.metrics.SetActivePolicy(name)
	e.logger.Info("Scheduling policy switched", map[string]interface{}{
		"from": old, "to": name, "migrated": migrated,
	})
}

// ingest claims a batch of PENDING jobs and offers them to the policy.
// Offer is idempotent, so re-claiming jobs already queued is harmless.
func (e *Engine) ingest() {
	jobs, err := e.store.ClaimPending(e.cfg.BatchSize)
	if err != nil {
		e.logger.Error("Failed to claim pending jobs", map[string]interface{}{"error": err.Error()})
		return
	}

	e.mu.Lock()
	policy := e.policy
	e.mu.Unlock()

	for _, job := range jobs {
		policy.Offer(job.Summary())
	}
}

// dispatch drains the policy: each job moves PENDING -> SCHEDULED in the
// store and its ID is pushed to the ready queue. A failed push rolls the
// job back to PENDING so a later tick can retry the dispatch.
func (e *Engine) dispatch() {
	e.mu.Lock()
	policy := e.policy
	e.mu.Unlock()

	dispatched := 0
	for e.cfg.DispatchLimit == 0 || dispatched < e.cfg.DispatchLimit {
		job, ok := policy.Next()
		if !ok {
			break
		}

		now := time.Now().UTC()
		err := e.store.Transition(job.ID, models.JobStatusPending, models.JobStatusScheduled,
			&store.TransitionPatch{ScheduledAt: &now})
		if errors.Is(err, store.ErrJobNotFound) || errors.Is(err, store.ErrConflict) {
			// Canceled or already moved on; nothing to dispatch
			e.logger.Debug("Skipping job no longer PENDING", map[string]interface{}{"job_id": job.ID})
			continue
		}
		if err != nil {
			e.logger.Error("Failed to mark job SCHEDULED", map[string]interface{}{
				"job_id": job.ID, "error": err.Error(),
			})
			break
		}

		if err := e.transport.PushReady(e.ctx, job.ID); err != nil {
			// The job never reached the queue; roll it back so the next
			// tick can re-claim it
			if rbErr := e.store.Transition(job.ID, models.JobStatusScheduled, models.JobStatusPending, nil); rbErr != nil {
				e.logger.Error("Failed to roll back undelivered job", map[string]interface{}{
					"job_id": job.ID, "error": rbErr.Error(),
				})
			}
			e.logger.Error("Failed to push job to ready queue", map[string]interface{}{
				"job_id": job.ID, "error": err.Error(),
			})
			break
		}

		e.metrics.JobDispatched()
		dispatched++
	}

	if dispatched > 0 {
		e.logger.Debug("Dispatched jobs", map[string]interface{}{"count": dispatched})
	}
}
