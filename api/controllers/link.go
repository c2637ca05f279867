package controllers

import (
	"net/http"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/api/validators"
	"github.com/fleetdesk/fleetdesk-backend/internal/agents"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

type linkRequest struct {
	Phone string `json:"phone" validate:"required,min=5"`
}

// Link binds the authenticated Telegram user to the agent identified by the
// submitted phone number.
func Link(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent service unavailable"))
			return
		}

		user := requireTelegramUser(w, r, logg)
		if user == nil {
			return
		}

		var payload linkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agent, err := svc.Link(r.Context(), payload.Phone, agentIdentity(user))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, agents.FromModel(agent))
	}
}
