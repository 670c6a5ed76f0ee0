package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTransportReadyQueue(t *testing.T) {
	tr := NewMemoryTransport()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := tr.PushReady(ctx, id); err != nil {
			t.Fatalf("PushReady() error = %v", err)
		}
	}

	depth, err := tr.QueueDepth(ctx)
	if err != nil || depth != 3 {
		t.Fatalf("QueueDepth() = %d, %v, want 3", depth, err)
	}

	// FIFO order
	for _, want := range []string{"a", "b", "c"} {
		got, err := tr.PopReady(ctx, time.Second)
		if err != nil {
			t.Fatalf("PopReady() error = %v", err)
		}
		if got != want {
			t.Errorf("PopReady() = %s, want %s", got, want)
		}
	}
}

func TestMemoryTransportPopTimeout(t *testing.T) {
	tr := NewMemoryTransport()

	start := time.Now()
	_, err := tr.PopReady(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("PopReady() error = %v, want ErrEmpty", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("PopReady returned before the timeout")
	}
}

func TestMemoryTransportPopUnblocksOnPush(t *testing.T) {
	tr := NewMemoryTransport()
	ctx := context.Background()

	done := make(chan string, 1)
	go func() {
		id, err := tr.PopReady(ctx, 5*time.Second)
		if err != nil {
			done <- "err:" + err.Error()
			return
		}
		done <- id
	}()

	time.Sleep(20 * time.Millisecond)
	if err := tr.PushReady(ctx, "late"); err != nil {
		t.Fatalf("PushReady() error = %v", err)
	}

	select {
	case got := <-done:
		if got != "late" {
			t.Errorf("PopReady() = %s, want late", got)
		}
	case <-time.After(time.Second):
		t.Fatal("PopReady did not unblock after push")
	}
}

func TestMemoryTransportPolicyCell(t *testing.T) {
	tr := NewMemoryTransport()
	ctx := context.Background()

	name, err := tr.ActivePolicy(ctx)
	if err != nil || name != "" {
		t.Fatalf("ActivePolicy() = %q, %v, want empty", name, err)
	}

	if err := tr.SetPolicy(ctx, "sjf"); err != nil {
		t.Fatalf("SetPolicy() error = %v", err)
	}
	name, err = tr.ActivePolicy(ctx)
	if err != nil || name != "sjf" {
		t.Fatalf("ActivePolicy() = %q, %v, want sjf", name, err)
	}
}

func TestMemoryTransportDeadLetters(t *testing.T) {
	tr := NewMemoryTransport()
	ctx := context.Background()

	for i, id := range []string{"j1", "j2", "j3"} {
		entry := DeadLetterEntry{
			JobID:      id,
			JobType:    "sleep",
			Name:       "doomed",
			Error:      "boom",
			RetryCount: i,
			FailedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if err := tr.PushDeadLetter(ctx, entry); err != nil {
			t.Fatalf("PushDeadLetter() error = %v", err)
		}
	}

	count, err := tr.DeadLetterCount(ctx)
	if err != nil || count != 3 {
		t.Fatalf("DeadLetterCount() = %d, %v, want 3", count, err)
	}

	page, err := tr.DeadLetters(ctx, 1, 2)
	if err != nil {
		t.Fatalf("DeadLetters() error = %v", err)
	}
	if len(page) != 2 || page[0].JobID != "j2" || page[1].JobID != "j3" {
		t.Errorf("DeadLetters(1,2) = %+v, want [j2 j3]", page)
	}

	// Out-of-range offset yields an empty page, not an error
	page, err = tr.DeadLetters(ctx, 10, 2)
	if err != nil || len(page) != 0 {
		t.Errorf("DeadLetters(10,2) = %+v, %v, want empty", page, err)
	}
}
