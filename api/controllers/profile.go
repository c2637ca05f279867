package controllers

import (
	"net/http"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/internal/managers"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

// Profile returns the manager record for the authenticated Telegram user,
// creating it on first access.
func Profile(svc managers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "manager service unavailable"))
			return
		}

		user := requireTelegramUser(w, r, logg)
		if user == nil {
			return
		}

		manager, err := svc.GetOrCreate(r.Context(), managerIdentity(user))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, managers.FromModel(manager))
	}
}
