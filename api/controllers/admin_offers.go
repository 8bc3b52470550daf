package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	"github.com/taskiq-ai/taskiq-backend/api/validators"
	"github.com/taskiq-ai/taskiq-backend/internal/offers"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

type offerRequest struct {
	Title        string     `json:"title" validate:"required,max=160"`
	Description  *string    `json:"description" validate:"omitempty,max=1024"`
	Type         string     `json:"type" validate:"required,oneof=credit_bonus trial discount promo"`
	BonusCredits int        `json:"bonus_credits" validate:"omitempty,min=0"`
	TrialTier    *string    `json:"trial_tier" validate:"omitempty,oneof=pro enterprise"`
	TrialDays    int        `json:"trial_days" validate:"omitempty,min=0"`
	Enabled      *bool      `json:"enabled"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (req offerRequest) toModel() *models.Offer {
	offer := &models.Offer{
		Title:        req.Title,
		Description:  req.Description,
		Type:         enums.OfferType(req.Type),
		BonusCredits: req.BonusCredits,
		TrialDays:    req.TrialDays,
		Enabled:      true,
		ExpiresAt:    req.ExpiresAt,
	}
	if req.TrialTier != nil {
		tier := enums.PlanTier(*req.TrialTier)
		offer.TrialTier = &tier
	}
	if req.Enabled != nil {
		offer.Enabled = *req.Enabled
	}
	return offer
}

func pathOfferID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid offer id")
	}
	return id, nil
}

// AdminCreateOffer publishes a new promotional offer.
func AdminCreateOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		var body offerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer := body.toModel()
		if err := svc.Create(r.Context(), offer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// AdminUpdateOffer replaces an offer's definition. Claim counts are kept by
// the service, not the payload.
func AdminUpdateOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		id, err := pathOfferID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body offerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer := body.toModel()
		offer.ID = id
		if err := svc.Update(r.Context(), offer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// AdminDeleteOffer retires an offer; existing claims stay on record.
func AdminDeleteOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		id, err := pathOfferID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
