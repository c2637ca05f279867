package middleware

import (
	"context"

	"github.com/fleetdesk/fleetdesk-backend/pkg/telegram"
)

type contextKey string

const ctxTelegramUser contextKey = "telegram_user"

// TelegramUserFromContext returns the authenticated Mini App user, or nil
// when the request did not pass Telegram auth.
func TelegramUserFromContext(ctx context.Context) *telegram.User {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxTelegramUser).(*telegram.User); ok {
		return v
	}
	return nil
}

// WithTelegramUser injects the verified Mini App user into the context.
func WithTelegramUser(ctx context.Context, user *telegram.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTelegramUser, user)
}
