package subscriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const userCancelReason = "canceled by user"

// StartCheckoutInput describes a request to begin paying for a tier.
type StartCheckoutInput struct {
	UserID     uuid.UUID
	Tier       enums.PlanTier
	SuccessURL string
	CancelURL  string
}

// CheckoutSessionView is the subset of the Stripe session the client needs.
type CheckoutSessionView struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutService fronts Stripe for the billing endpoints. The upgrade itself
// happens later, when the checkout.session.completed webhook lands; this
// service only opens the session and tears remote subscriptions down.
type CheckoutService interface {
	StartCheckout(ctx context.Context, input StartCheckoutInput) (*CheckoutSessionView, error)
	CancelForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// CheckoutServiceParams groups dependencies for the checkout service.
type CheckoutServiceParams struct {
	Plans         PlanRepository
	Subscriptions Service
	Billing       StripeBillingClient
	Logger        *logger.Logger
}

type checkoutService struct {
	plans   PlanRepository
	subs    Service
	billing StripeBillingClient
	logg    *logger.Logger
}

// NewCheckoutService builds the Stripe-facing billing service.
func NewCheckoutService(params CheckoutServiceParams) (CheckoutService, error) {
	if params.Plans == nil {
		return nil, fmt.Errorf("plan repository is required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("stripe billing client is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &checkoutService{
		plans:   params.Plans,
		subs:    params.Subscriptions,
		billing: params.Billing,
		logg:    params.Logger,
	}, nil
}

func (s *checkoutService) StartCheckout(ctx context.Context, input StartCheckoutInput) (*CheckoutSessionView, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Tier.IsPaid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires a paid tier")
	}

	plan, err := s.plans.FindByTier(ctx, input.Tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q not found", input.Tier))
	}
	if plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("plan %q is not purchasable", input.Tier))
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    plan.StripePriceID,
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: CheckoutMetadata(input.UserID, input.Tier),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: CheckoutMetadata(input.UserID, input.Tier),
		},
	}

	session, err := s.billing.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":   input.UserID,
		"plan_tier": input.Tier,
	})
	s.logg.Info(logCtx, "checkout session created")

	return &CheckoutSessionView{SessionID: session.ID, URL: session.URL}, nil
}

// CancelForUser downgrades locally and, when the subscription is billed
// through Stripe, tears the remote subscription down as well. The local
// downgrade runs first so a Stripe outage cannot leave the user entitled.
func (s *checkoutService) CancelForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	current, err := s.subs.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stripeID := current.StripeSubscriptionID

	canceled, err := s.subs.Cancel(ctx, userID, userCancelReason)
	if err != nil {
		return nil, err
	}

	if stripeID != nil && *stripeID != "" {
		if _, err := s.billing.CancelSubscription(ctx, *stripeID, nil); err != nil {
			// Local state is already free tier; Stripe retries via webhook
			// once customer.subscription.deleted fires.
			s.logg.Error(s.logg.WithField(ctx, "stripe_subscription_id", *stripeID), "remote subscription cancel failed", err)
		}
	}
	return canceled, nil
}
