package models

import "fmt"

// Job states
const (
	JobStatusPending   JobStatus = "PENDING"   // Accepted, waiting for the scheduler
	JobStatusScheduled JobStatus = "SCHEDULED" // Dispatched to the ready queue
	JobStatusRunning   JobStatus = "RUNNING"   // Claimed by a worker, executing
	JobStatusCompleted JobStatus = "COMPLETED" // Finished successfully
	JobStatusFailed    JobStatus = "FAILED"    // Failed permanently, dead-lettered
	JobStatusRetried   JobStatus = "RETRIED"   // Failed transiently, about to re-enter PENDING
)

// validTransitions maps from-state to allowed to-states
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusScheduled: true, // scheduler dispatches the job
	},
	JobStatusScheduled: {
		JobStatusRunning: true, // worker pops and claims the job
		JobStatusPending: true, // push to the ready queue failed, roll back
	},
	JobStatusRunning: {
		JobStatusCompleted: true, // handler succeeded
		JobStatusRetried:   true, // handler failed, retries remain
		JobStatusFailed:    true, // handler failed, retries exhausted
	},
	JobStatusRetried: {
		JobStatusPending: true, // retried job re-enters the pending pool
	},
	// Terminal states
	JobStatusCompleted: {},
	JobStatusFailed:    {},
}

// ValidateTransition checks if a state transition is allowed
func ValidateTransition(from, to JobStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if no further transitions are possible
func IsTerminalState(state JobStatus) bool {
	return state == JobStatusCompleted || state == JobStatusFailed
}

// IsValidStatus reports whether s names a known job state
func IsValidStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusScheduled, JobStatusRunning,
		JobStatusCompleted, JobStatusFailed, JobStatusRetried:
		return true
	}
	return false
}
