package controllers

import (
	"net/http"

	"github.com/fleetdesk/fleetdesk-backend/api/middleware"
	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/internal/agents"
	"github.com/fleetdesk/fleetdesk-backend/internal/managers"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/fleetdesk/fleetdesk-backend/pkg/telegram"
)

// requireTelegramUser pulls the authenticated Mini App user out of the request
// context, writing a 401 when the auth middleware did not run.
func requireTelegramUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) *telegram.User {
	user := middleware.TelegramUserFromContext(r.Context())
	if user == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "telegram user context missing"))
	}
	return user
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func managerIdentity(user *telegram.User) managers.Identity {
	return managers.Identity{
		TelegramID: user.ID,
		FirstName:  optString(user.FirstName),
		LastName:   optString(user.LastName),
		Username:   optString(user.Username),
	}
}

func agentIdentity(user *telegram.User) agents.Identity {
	return agents.Identity{
		TelegramID: user.ID,
		FirstName:  optString(user.FirstName),
		LastName:   optString(user.LastName),
		Username:   optString(user.Username),
	}
}
