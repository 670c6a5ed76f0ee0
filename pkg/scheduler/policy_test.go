package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

func summary(id string, priority int, duration float64, createdAt time.Time) models.ScheduleSummary {
	return models.ScheduleSummary{
		ID:                id,
		JobType:           models.JobTypeSleep,
		Priority:          priority,
		EstimatedDuration: duration,
		CreatedAt:         createdAt,
	}
}

func drain(p Policy) []string {
	ids := []string{}
	for {
		job, ok := p.Next()
		if !ok {
			return ids
		}
		ids = append(ids, job.ID)
	}
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("drained %d jobs, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFCFSOrder(t *testing.T) {
	base := time.Now()
	p := NewFCFS()
	p.Offer(summary("b", 5, 1, base.Add(time.Second)))
	p.Offer(summary("a", 5, 1, base))
	p.Offer(summary("c", 5, 1, base.Add(2*time.Second)))

	assertOrder(t, drain(p), []string{"a", "b", "c"})
}

func TestFCFSTieBreakByID(t *testing.T) {
	base := time.Now()
	p := NewFCFS()
	p.Offer(summary("z", 5, 1, base))
	p.Offer(summary("a", 5, 1, base))

	assertOrder(t, drain(p), []string{"a", "z"})
}

func TestSJFOrder(t *testing.T) {
	base := time.Now()
	p := NewSJF()
	p.Offer(summary("slow", 5, 10, base))
	p.Offer(summary("fast", 5, 0.5, base.Add(time.Second)))
	p.Offer(summary("medium", 5, 3, base.Add(2*time.Second)))

	assertOrder(t, drain(p), []string{"fast", "medium", "slow"})
}

func TestSJFTieBreakByCreatedAt(t *testing.T) {
	base := time.Now()
	p := NewSJF()
	p.Offer(summary("later", 5, 2, base.Add(time.Second)))
	p.Offer(summary("earlier", 5, 2, base))

	assertOrder(t, drain(p), []string{"earlier", "later"})
}

func TestPriorityOrder(t *testing.T) {
	base := time.Now()
	p := NewPriority()
	p.Offer(summary("low", 9, 1, base))
	p.Offer(summary("urgent", 1, 1, base.Add(time.Second)))
	p.Offer(summary("normal", 5, 1, base.Add(2*time.Second)))

	assertOrder(t, drain(p), []string{"urgent", "normal", "low"})
}

func TestPriorityTieBreakByCreatedAt(t *testing.T) {
	base := time.Now()
	p := NewPriority()
	p.Offer(summary("second", 3, 1, base.Add(time.Second)))
	p.Offer(summary("first", 3, 1, base))

	assertOrder(t, drain(p), []string{"first", "second"})
}

func TestRoundRobinInsertionOrder(t *testing.T) {
	base := time.Now()
	p := NewRoundRobin()
	// Insertion order wins regardless of priority or duration
	p.Offer(summary("x", 9, 100, base.Add(time.Hour)))
	p.Offer(summary("y", 1, 0.1, base))
	p.Offer(summary("z", 5, 1, base.Add(time.Minute)))

	assertOrder(t, drain(p), []string{"x", "y", "z"})
}

func TestRoundRobinReofferGoesToTail(t *testing.T) {
	base := time.Now()
	p := NewRoundRobin()
	p.Offer(summary("a", 5, 1, base))
	p.Offer(summary("b", 5, 1, base))

	first, _ := p.Next()
	p.Offer(first) // re-offered after a retry
	assertOrder(t, drain(p), []string{"b", first.ID})
}

func TestOfferIsIdempotent(t *testing.T) {
	base := time.Now()
	for _, name := range models.KnownPolicies {
		t.Run(name, func(t *testing.T) {
			p, err := NewPolicy(name)
			if err != nil {
				t.Fatalf("NewPolicy(%s) error = %v", name, err)
			}

			job := summary("dup", 5, 1, base)
			if !p.Offer(job) {
				t.Error("first offer should be accepted")
			}
			if p.Offer(job) {
				t.Error("second offer of the same ID should be rejected")
			}
			if p.Size() != 1 {
				t.Errorf("Size() = %d, want 1", p.Size())
			}

			// Once dispatched, the ID may be offered again (retry path)
			p.Next()
			if !p.Offer(job) {
				t.Error("re-offer after Next should be accepted")
			}
		})
	}
}

func TestClearDrainsEverything(t *testing.T) {
	base := time.Now()
	for _, name := range models.KnownPolicies {
		t.Run(name, func(t *testing.T) {
			p, _ := NewPolicy(name)
			for i := 0; i < 5; i++ {
				p.Offer(summary(fmt.Sprintf("j%d", i), i+1, float64(i), base.Add(time.Duration(i)*time.Second)))
			}

			drained := p.Clear()
			if len(drained) != 5 {
				t.Errorf("Clear() drained %d, want 5", len(drained))
			}
			if p.Size() != 0 {
				t.Errorf("Size() after Clear = %d, want 0", p.Size())
			}
			// The IDs are free again after a drain
			if !p.Offer(summary("j0", 1, 0, base)) {
				t.Error("offer after Clear should be accepted")
			}
		})
	}
}

func TestNewPolicyUnknown(t *testing.T) {
	if _, err := NewPolicy("lottery"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if KnownPolicy("lottery") {
		t.Error("KnownPolicy(lottery) = true")
	}
	for _, name := range models.KnownPolicies {
		if !KnownPolicy(name) {
			t.Errorf("KnownPolicy(%s) = false", name)
		}
	}
}
