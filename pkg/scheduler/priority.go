package scheduler

import "github.com/srivatsav09/JobScheduler/pkg/models"

// NewPriority returns a priority policy: lower priority values dispatch
// first (1 is the most urgent), falling back to submission order and
// then job ID on ties.
func NewPriority() Policy {
	return newOrderedPolicy(models.PolicyPriority, func(a, b models.ScheduleSummary) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
