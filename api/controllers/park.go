package controllers

import (
	"net/http"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/api/validators"
	"github.com/fleetdesk/fleetdesk-backend/internal/managers"
	"github.com/fleetdesk/fleetdesk-backend/internal/parks"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

type parkSubmitRequest struct {
	Name     string `json:"name" validate:"omitempty,min=1,max=128"`
	APIKey   string `json:"apiKey" validate:"required,min=8"`
	ParkID   string `json:"parkId" validate:"required,min=1"`
	ClientID string `json:"clientId" validate:"required,min=1"`
}

type parkResponse struct {
	ParkID   string `json:"parkId"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// ParkSubmit validates the submitted credential bundle against the upstream,
// encrypts it and attaches it to the manager.
func ParkSubmit(mgrSvc managers.Service, svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "park service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		var payload parkSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		park, err := svc.SubmitPark(r.Context(), manager.ID, parks.SubmitParkInput{
			Name:     validators.SanitizeString(payload.Name, 128),
			APIKey:   payload.APIKey,
			ParkID:   payload.ParkID,
			ClientID: payload.ClientID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, parkResponse{
			ParkID:   park.ParkID,
			ClientID: park.ClientID,
			Name:     park.Name,
		})
	}
}

// ParkDetach drops the manager's credential reference. The shared park row is
// retired only when no other manager still points at it.
func ParkDetach(mgrSvc managers.Service, svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "park service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		if err := svc.DetachPark(r.Context(), manager.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "detached"})
	}
}
