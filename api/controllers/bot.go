package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/api/validators"
	"github.com/fleetdesk/fleetdesk-backend/internal/agents"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

type botLinkRequest struct {
	TelegramUserID int64   `json:"telegramUserId" validate:"required"`
	Phone          string  `json:"phone" validate:"required,min=5"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	Username       *string `json:"username,omitempty"`
}

// BotAgentsLink links a Telegram identity supplied by the bot dialogue to an
// agent by phone. Unlike the Mini App route, the identity arrives in the body
// because the bot acts on behalf of the chatting user.
func BotAgentsLink(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent service unavailable"))
			return
		}

		var payload botLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agent, err := svc.Link(r.Context(), payload.Phone, agents.Identity{
			TelegramID: payload.TelegramUserID,
			FirstName:  payload.FirstName,
			LastName:   payload.LastName,
			Username:   payload.Username,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, agents.FromModel(agent))
	}
}

// BotAgentsGet looks up the agent currently linked to a Telegram identity.
func BotAgentsGet(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent service unavailable"))
			return
		}

		raw := chi.URLParam(r, "telegramID")
		telegramID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || telegramID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "telegram id must be a non-zero integer"))
			return
		}

		agent, err := svc.GetByTelegramID(r.Context(), telegramID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if agent == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found"))
			return
		}

		responses.WriteSuccess(w, agents.FromModel(agent))
	}
}
