package controllers

import (
	"net/http"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/api/validators"
	"github.com/fleetdesk/fleetdesk-backend/internal/agents"
	"github.com/fleetdesk/fleetdesk-backend/internal/drafts"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

// resolveAgent loads the linked agent for the authenticated Telegram user.
// Draft endpoints require a completed link; bare Telegram identities get 403.
func resolveAgent(w http.ResponseWriter, r *http.Request, svc agents.Service, logg *logger.Logger) *models.Agent {
	user := requireTelegramUser(w, r, logg)
	if user == nil {
		return nil
	}
	agent, err := svc.GetByTelegramID(r.Context(), user.ID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}
	if agent == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "telegram account is not linked to an agent"))
		return nil
	}
	return agent
}

// DraftGet returns the agent's registration draft, creating an empty one on
// first access.
func DraftGet(agentSvc agents.Service, svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if agentSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft service unavailable"))
			return
		}

		agent := resolveAgent(w, r, agentSvc, logg)
		if agent == nil {
			return
		}

		draft, err := svc.Get(r.Context(), agent.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, drafts.FromModel(draft))
	}
}

type draftPatchRequest struct {
	FirstName  *string `json:"firstName,omitempty" validate:"omitempty,min=1"`
	LastName   *string `json:"lastName,omitempty" validate:"omitempty,min=1"`
	MiddleName *string `json:"middleName,omitempty"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,min=5"`
	CarPlate   *string `json:"carPlate,omitempty" validate:"omitempty,min=1"`
	CarModel   *string `json:"carModel,omitempty" validate:"omitempty,min=1"`
	CarColor   *string `json:"carColor,omitempty"`
	CarYear    *string `json:"carYear,omitempty"`
}

// DraftPatch applies a partial update to an in-progress draft.
func DraftPatch(agentSvc agents.Service, svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if agentSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft service unavailable"))
			return
		}

		agent := resolveAgent(w, r, agentSvc, logg)
		if agent == nil {
			return
		}

		var payload draftPatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.Apply(r.Context(), agent.ID, drafts.Patch{
			FirstName:  payload.FirstName,
			LastName:   payload.LastName,
			MiddleName: payload.MiddleName,
			Phone:      payload.Phone,
			CarPlate:   payload.CarPlate,
			CarModel:   payload.CarModel,
			CarColor:   payload.CarColor,
			CarYear:    payload.CarYear,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, drafts.FromModel(draft))
	}
}

// DraftSubmit validates the required fields and finalizes the draft.
func DraftSubmit(agentSvc agents.Service, svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if agentSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft service unavailable"))
			return
		}

		agent := resolveAgent(w, r, agentSvc, logg)
		if agent == nil {
			return
		}

		draft, err := svc.Submit(r.Context(), agent.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, drafts.FromModel(draft))
	}
}
