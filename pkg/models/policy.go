package models

import "fmt"

// Scheduling policy names as stored in the transport's policy cell
const (
	PolicyFCFS       = "fcfs"
	PolicySJF        = "sjf"
	PolicyPriority   = "priority"
	PolicyRoundRobin = "round_robin"
)

// KnownPolicies lists the selectable scheduling policies
var KnownPolicies = []string{PolicyFCFS, PolicySJF, PolicyPriority, PolicyRoundRobin}

// ValidatePolicy checks a policy name
func ValidatePolicy(name string) error {
	for _, p := range KnownPolicies {
		if p == name {
			return nil
		}
	}
	return fmt.Errorf("unknown scheduling policy: %q", name)
}
