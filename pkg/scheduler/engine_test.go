package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

func quietLogger() *logging.Logger {
	l := logging.NewLogger(logging.ERROR, false)
	l.SetOutput(io.Discard)
	return l
}

func newTestEngine(t *testing.T, cfg EngineConfig) (*Engine, *store.MemoryStore, *queue.MemoryTransport) {
	t.Helper()
	s := store.NewMemoryStore()
	tr := queue.NewMemoryTransport()
	e, err := NewEngine(s, tr, cfg, quietLogger(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e, s, tr
}

func submit(t *testing.T, s store.Store, name string, priority int, duration float64) *models.Job {
	t.Helper()
	n, err := (&models.JobRequest{
		Name:              name,
		JobType:           models.JobTypeSleep,
		Priority:          priority,
		EstimatedDuration: duration,
	}).Validate(nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	job := models.NewJob(n)
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	return job
}

func TestEngineDispatchesPendingJobs(t *testing.T) {
	e, s, tr := newTestEngine(t, EngineConfig{DefaultPolicy: models.PolicyFCFS})
	ctx := context.Background()

	a := submit(t, s, "a", 5, 1)
	b := submit(t, s, "b", 5, 1)

	e.Tick()

	for _, job := range []*models.Job{a, b} {
		got, err := s.GetJob(job.ID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if got.Status != models.JobStatusScheduled {
			t.Errorf("job %s status = %s, want SCHEDULED", job.Name, got.Status)
		}
		if got.ScheduledAt == nil {
			t.Errorf("job %s scheduled_at not set", job.Name)
		}
	}

	depth, _ := tr.QueueDepth(ctx)
	if depth != 2 {
		t.Errorf("queue depth = %d, want 2", depth)
	}
}

func TestEngineSkipsCanceledJobs(t *testing.T) {
	e, s, tr := newTestEngine(t, EngineConfig{DefaultPolicy: models.PolicyFCFS})
	ctx := context.Background()

	job := submit(t, s, "doomed", 5, 1)
	keep := submit(t, s, "kept", 5, 1)

	// The policy learns about both jobs, then the user cancels one before
	// dispatch
	e.ingest()
	if err := s.DeleteJob(job.ID); err != nil {
		t.Fatalf("DeleteJob() error = %v", err)
	}

	e.dispatch()

	depth, _ := tr.QueueDepth(ctx)
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1 (canceled job must not dispatch)", depth)
	}
	id, err := tr.PopReady(ctx, time.Second)
	if err != nil || id != keep.ID {
		t.Errorf("PopReady() = %s, %v, want %s", id, err, keep.ID)
	}
}

func TestEngineDuplicateClaimDoesNotDoubleDispatch(t *testing.T) {
	e, s, tr := newTestEngine(t, EngineConfig{DefaultPolicy: models.PolicyFCFS})
	ctx := context.Background()

	submit(t, s, "once", 5, 1)

	// Two ingests before any dispatch; Offer idempotence keeps one copy
	e.ingest()
	e.ingest()
	e.dispatch()

	depth, _ := tr.QueueDepth(ctx)
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestEnginePolicySwitchKeepsJobs(t *testing.T) {
	e, s, tr := newTestEngine(t, EngineConfig{DefaultPolicy: models.PolicyFCFS, DispatchLimit: -1})
	ctx := context.Background()

	// DispatchLimit < 0 never dispatches, so jobs stay queued in the policy
	submit(t, s, "a", 2, 1)
	submit(t, s, "b", 8, 1)
	e.Tick()

	if e.QueuedJobs() != 2 {
		t.Fatalf("queued = %d, want 2", e.QueuedJobs())
	}

	if err := tr.SetPolicy(ctx, models.PolicyPriority); err != nil {
		t.Fatalf("SetPolicy() error = %v", err)
	}
	e.Tick()

	if e.ActivePolicyName() != models.PolicyPriority {
		t.Errorf("active policy = %s, want priority", e.ActivePolicyName())
	}
	if e.QueuedJobs() != 2 {
		t.Errorf("queued after switch = %d, want 2", e.QueuedJobs())
	}
}

func TestEngineIgnoresUnknownPolicy(t *testing.T) {
	e, _, tr := newTestEngine(t, EngineConfig{DefaultPolicy: models.PolicySJF})
	ctx := context.Background()

	if err := tr.SetPolicy(ctx, "lottery"); err != nil {
		t.Fatalf("SetPolicy() error = %v", err)
	}
	e.Tick()

	if e.ActivePolicyName() != models.PolicySJF {
		t.Errorf("active policy = %s, want sjf", e.ActivePolicyName())
	}
}

func TestEngineDispatchLimit(t *testing.T) {
	e, s, tr := newTestEngine(t, EngineConfig{DefaultPolicy: models.PolicyFCFS, DispatchLimit: 1})
	ctx := context.Background()

	submit(t, s, "a", 5, 1)
	submit(t, s, "b", 5, 1)
	e.Tick()

	depth, _ := tr.QueueDepth(ctx)
	if depth != 1 {
		t.Errorf("queue depth after capped tick = %d, want 1", depth)
	}

	e.Tick()
	depth, _ = tr.QueueDepth(ctx)
	if depth != 2 {
		t.Errorf("queue depth after second tick = %d, want 2", depth)
	}
}

// brokenPushTransport fails PushReady while broken is set, simulating a
// transport outage between the store commit and the queue push
type brokenPushTransport struct {
	*queue.MemoryTransport
	broken bool
}

func (b *brokenPushTransport) PushReady(ctx context.Context, jobID string) error {
	if b.broken {
		return errors.New("connection refused")
	}
	return b.MemoryTransport.PushReady(ctx, jobID)
}

func TestEngineRollsBackJobOnPushFailure(t *testing.T) {
	s := store.NewMemoryStore()
	tr := &brokenPushTransport{MemoryTransport: queue.NewMemoryTransport(), broken: true}
	e, err := NewEngine(s, tr, EngineConfig{DefaultPolicy: models.PolicyFCFS}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	ctx := context.Background()

	job := submit(t, s, "undelivered", 5, 1)
	e.Tick()

	// The push never happened, so the job must be PENDING again and the
	// queue empty
	got, err := s.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != models.JobStatusPending {
		t.Errorf("status after failed push = %s, want PENDING", got.Status)
	}
	depth, _ := tr.QueueDepth(ctx)
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}

	// Once the transport heals, a later tick re-dispatches the same job
	tr.broken = false
	e.Tick()

	got, _ = s.GetJob(job.ID)
	if got.Status != models.JobStatusScheduled {
		t.Errorf("status after recovery tick = %s, want SCHEDULED", got.Status)
	}
	id, err := tr.PopReady(ctx, time.Second)
	if err != nil || id != job.ID {
		t.Errorf("PopReady() = %s, %v, want %s", id, err, job.ID)
	}
}

func TestEngineWakeDispatchesBeforeTick(t *testing.T) {
	// A very slow ticker, so only Wake can cause a dispatch in time
	e, s, tr := newTestEngine(t, EngineConfig{
		DefaultPolicy: models.PolicyFCFS,
		TickInterval:  time.Hour,
	})
	ctx := context.Background()

	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop()

	submit(t, s, "urgent", 5, 1)
	e.Wake()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if depth, _ := tr.QueueDepth(ctx); depth == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	depth, _ := tr.QueueDepth(ctx)
	t.Errorf("queue depth = %d, want 1 after Wake()", depth)
}

func TestEngineStartRecoversAndInstallsPolicy(t *testing.T) {
	e, s, tr := newTestEngine(t, EngineConfig{
		DefaultPolicy: models.PolicyFCFS,
		TickInterval:  10 * time.Millisecond,
	})
	ctx := context.Background()

	// A job stranded in RUNNING by a crash
	stranded := submit(t, s, "stranded", 5, 1)
	if err := s.Transition(stranded.ID, models.JobStatusPending, models.JobStatusScheduled, nil); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := s.Transition(stranded.ID, models.JobStatusScheduled, models.JobStatusRunning, nil); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop()

	// Recovery put it back through the normal pipeline
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.GetJob(stranded.ID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if got.Status == models.JobStatusScheduled {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := s.GetJob(stranded.ID)
	if got.Status != models.JobStatusScheduled {
		t.Errorf("status = %s, want SCHEDULED after recovery and dispatch", got.Status)
	}

	name, err := tr.ActivePolicy(ctx)
	if err != nil || name != models.PolicyFCFS {
		t.Errorf("ActivePolicy() = %q, %v, want fcfs", name, err)
	}
}
