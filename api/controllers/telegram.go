package controllers

import (
	"net/http"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	"github.com/taskiq-ai/taskiq-backend/internal/bot"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

type linkCodeResponse struct {
	Code        string `json:"code"`
	Instruction string `json:"instruction"`
}

// CreateTelegramLinkCode issues a one-time code the caller sends to the bot
// via /link to attach their Telegram chat.
func CreateTelegramLinkCode(svc bot.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bot service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code, err := svc.CreateLinkCode(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, linkCodeResponse{
			Code:        code,
			Instruction: "send /link " + code + " to the bot within 10 minutes",
		})
	}
}
