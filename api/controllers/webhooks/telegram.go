package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type TelegramUpdateService interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// TelegramWebhook authenticates the callback with the shared secret header
// Telegram echoes back, then routes the update to the bot service. Telegram
// retries on non-2xx, so handler failures surface as errors on purpose.
func TelegramWebhook(svc TelegramUpdateService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bot service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "telegram webhook secret not configured"))
			return
		}

		provided := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode update"))
			return
		}

		if err := svc.HandleUpdate(ctx, update); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
