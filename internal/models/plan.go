package models

// UsagePlan determines a tenant's daily request quota and the maximum
// number of shipments accepted in a single batch request.
type UsagePlan string

const (
	PlanFree       UsagePlan = "free"
	PlanStarter    UsagePlan = "starter"
	PlanPro        UsagePlan = "pro"
	PlanEnterprise UsagePlan = "enterprise"
)

// RequestsPerDay returns the plan's daily request quota, or -1 for
// unlimited.
func (p UsagePlan) RequestsPerDay() int {
	switch p {
	case PlanFree:
		return 100
	case PlanStarter:
		return 1000
	case PlanPro:
		return 10000
	case PlanEnterprise:
		return -1
	default:
		// Unknown plans fall back to the most restrictive quota.
		return 100
	}
}

// MaxBatchSize returns the maximum shipments per batch request.
func (p UsagePlan) MaxBatchSize() int {
	if p == PlanFree || !p.Valid() {
		return 10
	}
	return 40
}

// Unlimited reports whether the plan bypasses the daily quota.
func (p UsagePlan) Unlimited() bool {
	return p.RequestsPerDay() < 0
}

func (p UsagePlan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	default:
		return false
	}
}
