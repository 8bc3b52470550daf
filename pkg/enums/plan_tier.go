package enums

import "fmt"

// PlanTier is the canonical subscription tier vocabulary. Billing cadence is
// not part of the tier; it lives on the plan row as a BillingInterval.
type PlanTier string

const (
	PlanTierFree       PlanTier = "free"
	PlanTierPro        PlanTier = "pro"
	PlanTierEnterprise PlanTier = "enterprise"
)

var validPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierPro,
	PlanTierEnterprise,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanTier.
func (p PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier is billed.
func (p PlanTier) IsPaid() bool {
	return p == PlanTierPro || p == PlanTierEnterprise
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
