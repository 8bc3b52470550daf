package enums

import "fmt"

// BillingInterval is the renewal cadence stored on a plan row. Tier and
// cadence are independent: pro can bill monthly or yearly.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

// String implements fmt.Stringer.
func (b BillingInterval) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingInterval.
func (b BillingInterval) IsValid() bool {
	switch b {
	case BillingIntervalMonthly, BillingIntervalYearly:
		return true
	}
	return false
}

// ParseBillingInterval validates raw input into a BillingInterval.
func ParseBillingInterval(value string) (BillingInterval, error) {
	interval := BillingInterval(value)
	if !interval.IsValid() {
		return "", fmt.Errorf("invalid billing interval %q", value)
	}
	return interval, nil
}
