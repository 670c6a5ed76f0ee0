package scheduler

import "github.com/srivatsav09/JobScheduler/pkg/models"

// NewSJF returns a shortest-job-first policy: the smallest estimated
// duration dispatches first, falling back to submission order and then
// job ID on ties.
func NewSJF() Policy {
	return newOrderedPolicy(models.PolicySJF, func(a, b models.ScheduleSummary) bool {
		if a.EstimatedDuration != b.EstimatedDuration {
			return a.EstimatedDuration < b.EstimatedDuration
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
