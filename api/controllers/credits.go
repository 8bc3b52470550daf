package controllers

import (
	"net/http"
	"time"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	"github.com/taskiq-ai/taskiq-backend/api/validators"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const maxConsumeNoteLen = 256

type consumeRequest struct {
	Amount int    `json:"amount" validate:"omitempty,min=1"`
	Note   string `json:"note" validate:"omitempty,max=256"`
}

type creditAccountView struct {
	DailyLimit  int    `json:"daily_limit"`
	UsedToday   int    `json:"used_today"`
	Remaining   int    `json:"remaining"`
	LastUpdated string `json:"last_updated"`
}

// GetCredits returns the caller's live allowance, lazily resetting the daily
// window first.
func GetCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.GetAccount(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, creditAccountView{
			DailyLimit:  account.DailyLimit,
			UsedToday:   account.UsedToday,
			Remaining:   account.Remaining(),
			LastUpdated: account.LastUpdated.UTC().Format(time.RFC3339),
		})
	}
}

// ConsumeCredits debits the caller's allowance for one unit of work.
func ConsumeCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body consumeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Consume(r.Context(), credits.ConsumeInput{
			UserID: userID,
			Amount: body.Amount,
			Note:   validators.SanitizeString(body.Note, maxConsumeNoteLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
