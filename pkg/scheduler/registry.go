package scheduler

import (
	"fmt"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// factories maps policy names to constructors
var factories = map[string]func() Policy{
	models.PolicyFCFS:       NewFCFS,
	models.PolicySJF:        NewSJF,
	models.PolicyPriority:   NewPriority,
	models.PolicyRoundRobin: NewRoundRobin,
}

// NewPolicy builds a fresh policy instance by name
func NewPolicy(name string) (Policy, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown scheduling policy: %q", name)
	}
	return factory(), nil
}

// KnownPolicy reports whether name is registered
func KnownPolicy(name string) bool {
	_, ok := factories[name]
	return ok
}
