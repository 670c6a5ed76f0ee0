package scheduler

import (
	"sync"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// DefaultQuantum is the nominal round-robin time slice. Executors run
// jobs to completion, so the quantum only shapes re-offer order; it is
// kept on the constructor for operators tuning fairness expectations.
const DefaultQuantum = 100 * time.Millisecond

// roundRobin dispatches jobs in strict insertion order. Jobs offered
// again after a retry join the tail, so no single job can monopolize
// the queue.
type roundRobin struct {
	quantum time.Duration
	order   []models.ScheduleSummary
	seen    map[string]bool
	mu      sync.Mutex
}

// NewRoundRobin returns a round-robin policy with the default quantum
func NewRoundRobin() Policy {
	return NewRoundRobinWithQuantum(DefaultQuantum)
}

// NewRoundRobinWithQuantum returns a round-robin policy with an explicit
// time slice
func NewRoundRobinWithQuantum(quantum time.Duration) Policy {
	return &roundRobin{
		quantum: quantum,
		seen:    make(map[string]bool),
	}
}

func (p *roundRobin) Name() string { return models.PolicyRoundRobin }

func (p *roundRobin) Offer(job models.ScheduleSummary) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen[job.ID] {
		return false
	}
	p.seen[job.ID] = true
	p.order = append(p.order, job)
	return true
}

func (p *roundRobin) Next() (models.ScheduleSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		return models.ScheduleSummary{}, false
	}
	job := p.order[0]
	p.order = p.order[1:]
	delete(p.seen, job.ID)
	return job, true
}

func (p *roundRobin) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

func (p *roundRobin) Clear() []models.ScheduleSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	drained := p.order
	p.order = nil
	p.seen = make(map[string]bool)
	return drained
}
