package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/jobs"
	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/metrics"
	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

// PoolConfig tunes the worker pool
type PoolConfig struct {
	Size       int           // number of concurrent executors
	PopTimeout time.Duration // blocking pop timeout per loop iteration
}

// Pool runs a fixed set of executors. Each executor blocks on the ready
// queue, claims the job via a SCHEDULED -> RUNNING transition and runs
// the registered handler. Jobs run to completion; Stop waits for
// in-flight work.
type Pool struct {
	cfg       PoolConfig
	store     store.Store
	transport queue.Transport
	registry  *jobs.Registry
	retrier   *RetryHandler
	logger    *logging.Logger
	metrics   *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPool creates a worker pool
func NewPool(cfg PoolConfig, s store.Store, t queue.Transport, registry *jobs.Registry,
	logger *logging.Logger, m *metrics.Collector) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 4
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:       cfg,
		store:     s,
		transport: t,
		registry:  registry,
		retrier:   NewRetryHandler(s, t, logger, m),
		logger:    logger,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the executors
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.logger.Info("Worker pool started", map[string]interface{}{"size": p.cfg.Size})
}

// Stop tells executors to finish their current job and exit. Blocks
// until all of them have drained.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.cancel()
	p.logger.Info("Worker pool stopped")
}

// run is one executor's pop-claim-execute loop
func (p *Pool) run(id int) {
	defer p.wg.Done()
	log := p.logger.WithField("worker", id)

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		jobID, err := p.transport.PopReady(p.ctx, p.cfg.PopTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			log.Error("Failed to pop ready job", map[string]interface{}{"error": err.Error()})
			time.Sleep(time.Second)
			continue
		}

		p.execute(log, jobID)
	}
}

// execute claims and runs one job
func (p *Pool) execute(log *logging.Logger, jobID string) {
	started := time.Now().UTC()
	err := p.store.Transition(jobID, models.JobStatusScheduled, models.JobStatusRunning,
		&store.TransitionPatch{StartedAt: &started})
	if errors.Is(err, store.ErrJobNotFound) {
		// Canceled between dispatch and pop; the queue entry is stale
		log.Debug("Skipping canceled job", map[string]interface{}{"job_id": jobID})
		return
	}
	if errors.Is(err, store.ErrConflict) {
		// Someone else already moved the job on (startup recovery race)
		log.Debug("Skipping job not in SCHEDULED", map[string]interface{}{"job_id": jobID})
		return
	}
	if err != nil {
		log.Error("Failed to claim job", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}

	job, err := p.store.GetJob(jobID)
	if err != nil {
		log.Error("Failed to load claimed job", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}

	handler, err := p.registry.Get(job.JobType)
	if err != nil {
		// No handler will ever exist for this row; retrying is pointless
		if hErr := p.retrier.HandleFailure(p.ctx, job, err, true); hErr != nil {
			log.Error("Failed to dead-letter job", map[string]interface{}{"job_id": jobID, "error": hErr.Error()})
		}
		return
	}

	p.metrics.WorkerBusy()
	defer p.metrics.WorkerIdle()

	log.Info("Executing job", map[string]interface{}{
		"job_id": job.ID, "name": job.Name, "type": string(job.JobType),
	})

	result, execErr := handler.Execute(p.ctx, job)
	elapsed := time.Since(started)

	if execErr != nil {
		if hErr := p.retrier.HandleFailure(p.ctx, job, execErr, false); hErr != nil {
			log.Error("Failed to handle job failure", map[string]interface{}{
				"job_id": job.ID, "error": hErr.Error(),
			})
		}
		return
	}

	if result == nil {
		result = map[string]interface{}{}
	}
	result["execution_time_sec"] = math.Round(elapsed.Seconds()*1000) / 1000

	finished := time.Now().UTC()
	err = p.store.Transition(job.ID, models.JobStatusRunning, models.JobStatusCompleted,
		&store.TransitionPatch{FinishedAt: &finished, Result: result})
	if err != nil {
		log.Error("Failed to mark job COMPLETED", map[string]interface{}{
			"job_id": job.ID, "error": err.Error(),
		})
		return
	}

	p.metrics.JobCompleted()
	p.metrics.ObserveExecution(elapsed.Seconds())
	log.Info("Job completed", map[string]interface{}{
		"job_id":   job.ID,
		"name":     job.Name,
		"duration": fmt.Sprintf("%.3fs", elapsed.Seconds()),
	})
}
