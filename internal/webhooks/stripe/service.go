package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const cancelReasonStripe = "stripe subscription canceled"

type subscriptionService interface {
	Upgrade(ctx context.Context, input subscriptions.UpgradeInput) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID, reason string) (*models.Subscription, error)
}

type subscriptionLookup interface {
	FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
}

// ServiceParams configure the Stripe webhook processor.
type ServiceParams struct {
	Subscriptions subscriptionService
	Lookup        subscriptionLookup
	Guard         *IdempotencyGuard
	Logger        *logger.Logger
}

// Service applies billing events from Stripe to the subscription ledger.
// Signature verification happens at the HTTP edge; by the time an event
// reaches HandleEvent it is authenticated.
type Service struct {
	subs   subscriptionService
	lookup subscriptionLookup
	guard  *IdempotencyGuard
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if params.Lookup == nil {
		return nil, fmt.Errorf("subscription lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		subs:   params.Subscriptions,
		lookup: params.Lookup,
		guard:  params.Guard,
		logg:   params.Logger,
	}, nil
}

// HandleEvent routes one verified Stripe event. Duplicate deliveries are
// dropped via the Redis idempotency guard; a processing failure releases the
// guard so Stripe's retry can run the event again.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
		}
		if seen {
			s.logg.Info(s.logg.WithField(ctx, "stripe_event", event.ID), "duplicate stripe event dropped")
			return nil
		}
	}

	if err := s.processEvent(ctx, event); err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
				s.logg.Error(ctx, "failed to release idempotency key", delErr)
			}
		}
		return err
	}
	return nil
}

func (s *Service) processEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.handleSubscriptionDeleted(ctx, &stripeSub)
	default:
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	input, err := subscriptions.UpgradeInputFromCheckout(session)
	if err != nil {
		return err
	}
	if _, err := s.subs.Upgrade(ctx, input); err != nil {
		return err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":   input.UserID,
		"plan_tier": input.Tier,
	})
	s.logg.Info(logCtx, "checkout completed; subscription upgraded")
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription id required")
	}
	stored, err := s.lookup.FindByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if stored == nil {
		// Deletion for a subscription we never tracked; nothing to downgrade.
		s.logg.Warn(s.logg.WithField(ctx, "stripe_subscription_id", stripeSub.ID), "subscription deletion for unknown subscription")
		return nil
	}
	if _, err := s.subs.Cancel(ctx, stored.UserID, cancelReasonStripe); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "user_id", stored.UserID), "subscription canceled from stripe")
	return nil
}
