package subscriptions

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

// Metadata keys attached to every checkout session we create, so the webhook
// can route the completed payment back to the right user and tier.
const (
	metadataUserIDKey   = "user_id"
	metadataPlanTierKey = "plan_tier"
)

// CheckoutMetadata builds the metadata block for a checkout session.
func CheckoutMetadata(userID uuid.UUID, tier enums.PlanTier) map[string]string {
	return map[string]string{
		metadataUserIDKey:   userID.String(),
		metadataPlanTierKey: tier.String(),
	}
}

// UpgradeInputFromCheckout maps a completed Stripe checkout session back into
// the canonical upgrade request. The session must carry the metadata written
// by CheckoutMetadata and a subscription reference.
func UpgradeInputFromCheckout(session *stripe.CheckoutSession) (UpgradeInput, error) {
	if session == nil {
		return UpgradeInput{}, pkgerrors.New(pkgerrors.CodeDependency, "checkout session is nil")
	}

	userID, err := UserIDFromMetadata(session.Metadata)
	if err != nil {
		return UpgradeInput{}, err
	}

	tier, err := tierFromMetadata(session.Metadata)
	if err != nil {
		return UpgradeInput{}, err
	}

	input := UpgradeInput{UserID: userID, Tier: tier}
	if session.Subscription != nil && session.Subscription.ID != "" {
		id := session.Subscription.ID
		input.StripeSubscriptionID = &id
	}
	return input, nil
}

// UserIDFromMetadata extracts the user ID attached to Stripe metadata.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout metadata is required")
	}
	raw, ok := metadata[metadataUserIDKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

func tierFromMetadata(metadata map[string]string) (enums.PlanTier, error) {
	raw, ok := metadata[metadataPlanTierKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "plan_tier missing from metadata")
	}
	tier, err := enums.ParsePlanTier(strings.TrimSpace(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid plan_tier metadata %q", raw))
	}
	return tier, nil
}
