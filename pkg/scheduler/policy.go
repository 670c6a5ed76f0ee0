package scheduler

import (
	"container/heap"
	"sync"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// Policy is an in-memory ordering over pending jobs. The engine offers
// claimed jobs to the active policy each tick and drains it in dispatch
// order. Policies hold ScheduleSummary values only; the store remains the
// source of truth for job state.
//
// Implementations must be safe for concurrent use.
type Policy interface {
	// Name returns the policy's registry name
	Name() string
	// Offer inserts a job. Returns false if the job is already queued;
	// offering the same ID twice never grows the policy.
	Offer(job models.ScheduleSummary) bool
	// Next removes and returns the highest-ranked job
	Next() (models.ScheduleSummary, bool)
	// Size returns the number of queued jobs
	Size() int
	// Clear drains all queued jobs, used when switching policies
	Clear() []models.ScheduleSummary
}

// lessFunc ranks two jobs; true means a dispatches before b
type lessFunc func(a, b models.ScheduleSummary) bool

// jobHeap is a binary heap over schedule summaries
type jobHeap struct {
	items []models.ScheduleSummary
	less  lessFunc
}

func (h *jobHeap) Len() int            { return len(h.items) }
func (h *jobHeap) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *jobHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *jobHeap) Push(x interface{})  { h.items = append(h.items, x.(models.ScheduleSummary)) }
func (h *jobHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// orderedPolicy is the heap-backed policy shared by FCFS, SJF and Priority.
// Each variant differs only in its ranking function.
type orderedPolicy struct {
	name string
	h    *jobHeap
	seen map[string]bool
	mu   sync.Mutex
}

func newOrderedPolicy(name string, less lessFunc) *orderedPolicy {
	return &orderedPolicy{
		name: name,
		h:    &jobHeap{less: less},
		seen: make(map[string]bool),
	}
}

func (p *orderedPolicy) Name() string { return p.name }

func (p *orderedPolicy) Offer(job models.ScheduleSummary) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen[job.ID] {
		return false
	}
	p.seen[job.ID] = true
	heap.Push(p.h, job)
	return true
}

func (p *orderedPolicy) Next() (models.ScheduleSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h.Len() == 0 {
		return models.ScheduleSummary{}, false
	}
	job := heap.Pop(p.h).(models.ScheduleSummary)
	delete(p.seen, job.ID)
	return job, true
}

func (p *orderedPolicy) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.h.Len()
}

func (p *orderedPolicy) Clear() []models.ScheduleSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	drained := make([]models.ScheduleSummary, 0, p.h.Len())
	for p.h.Len() > 0 {
		job := heap.Pop(p.h).(models.ScheduleSummary)
		delete(p.seen, job.ID)
		drained = append(drained, job)
	}
	return drained
}
