package scheduler

import "github.com/srivatsav09/JobScheduler/pkg/models"

// NewFCFS returns a first-come-first-served policy: jobs dispatch in
// submission order, job ID breaking created_at ties.
func NewFCFS() Policy {
	return newOrderedPolicy(models.PolicyFCFS, func(a, b models.ScheduleSummary) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
