package middleware

import (
	"net/http"
	"strings"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/fleetdesk/fleetdesk-backend/pkg/telegram"
)

const initDataHeader = "X-Telegram-Init-Data"

// TelegramAuth verifies the Mini App init-data signature and seeds the
// request context with the authenticated Telegram user.
func TelegramAuth(cfg config.TelegramConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(initDataHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing init data"))
				return
			}

			if !telegram.Validate(raw, cfg.BotToken, cfg.InitDataMaxAge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid init data"))
				return
			}

			data, err := telegram.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid init data"))
				return
			}
			if data.User == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "init data has no user"))
				return
			}

			ctx := WithTelegramUser(r.Context(), data.User)
			if logg != nil {
				ctx = logg.WithTelegramID(ctx, data.User.ID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
