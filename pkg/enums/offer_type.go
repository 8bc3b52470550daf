package enums

import "fmt"

// OfferType selects which benefit a promotional offer grants on claim.
type OfferType string

const (
	OfferTypeCreditBonus OfferType = "credit_bonus"
	OfferTypeTrial       OfferType = "trial"
	OfferTypeDiscount    OfferType = "discount"
	OfferTypePromo       OfferType = "promo"
)

var validOfferTypes = []OfferType{
	OfferTypeCreditBonus,
	OfferTypeTrial,
	OfferTypeDiscount,
	OfferTypePromo,
}

// String implements fmt.Stringer.
func (o OfferType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferType.
func (o OfferType) IsValid() bool {
	for _, candidate := range validOfferTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOfferType converts raw input into an OfferType.
func ParseOfferType(value string) (OfferType, error) {
	for _, candidate := range validOfferTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer type %q", value)
}
