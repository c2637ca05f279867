package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

const botSecretHeader = "X-Api-Secret"

// BotSecret guards the bot surface with a shared secret header. A server
// without a configured secret rejects everything rather than running open.
func BotSecret(cfg config.TelegramConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.BotAPISecret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bot access is not configured"))
				return
			}

			supplied := strings.TrimSpace(r.Header.Get(botSecretHeader))
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(cfg.BotAPISecret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid bot secret"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
