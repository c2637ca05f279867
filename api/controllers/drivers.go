package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk-backend/api/responses"
	"github.com/fleetdesk/fleetdesk-backend/api/validators"
	"github.com/fleetdesk/fleetdesk-backend/internal/drivers"
	"github.com/fleetdesk/fleetdesk-backend/internal/managers"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

// resolveManager loads the manager row for the authenticated Telegram user.
// Nil return means the response has already been written.
func resolveManager(w http.ResponseWriter, r *http.Request, svc managers.Service, logg *logger.Logger) *managers.ManagerDTO {
	user := requireTelegramUser(w, r, logg)
	if user == nil {
		return nil
	}
	manager, err := svc.GetOrCreate(r.Context(), managerIdentity(user))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}
	dto := managers.FromModel(manager)
	return &dto
}

// DriversList returns the park driver roster with linked flags and, on empty
// results, an operator hint.
func DriversList(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		list, err := svc.ListDrivers(r.Context(), manager.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

type linkDriverRequest struct {
	DriverID string `json:"driverId" validate:"omitempty,min=1"`
	Phone    string `json:"phone" validate:"omitempty,min=5"`
}

type driverLinkResponse struct {
	DriverID    string  `json:"driverId"`
	DriverName  *string `json:"driverName,omitempty"`
	DriverPhone *string `json:"driverPhone,omitempty"`
}

// DriversLink pins an upstream driver to the manager, identified by id or by
// phone number.
func DriversLink(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		var payload linkDriverRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.LinkDriver(r.Context(), manager.ID, drivers.LinkDriverInput{
			DriverID: payload.DriverID,
			Phone:    payload.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, driverLinkResponse{
			DriverID:    link.DriverID,
			DriverName:  link.DriverName,
			DriverPhone: link.DriverPhone,
		})
	}
}

// DriversUnlink removes the pin for the given driver.
func DriversUnlink(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		driverID := chi.URLParam(r, "driverID")
		if driverID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "driver id required"))
			return
		}

		if err := svc.UnlinkDriver(r.Context(), manager.ID, driverID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "unlinked"})
	}
}

type driversStatusRequest struct {
	DriverIDs []string `json:"driverIds" validate:"required,min=1,dive,min=1"`
}

// DriversStatus reports the work status for the requested drivers in one
// upstream round trip.
func DriversStatus(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		var payload driversStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		statuses, err := svc.DriversStatus(r.Context(), manager.ID, payload.DriverIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"statuses": statuses})
	}
}

type driverProfileResponse struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	Phone      string `json:"phone,omitempty"`
	WorkStatus string `json:"workStatus,omitempty"`
	CarPlate   string `json:"carPlate,omitempty"`
	CarModel   string `json:"carModel,omitempty"`
}

// DriversGet returns one driver profile.
func DriversGet(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		driverID := chi.URLParam(r, "driverID")
		if driverID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "driver id required"))
			return
		}

		profile, err := svc.GetDriver(r.Context(), manager.ID, driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, driverProfileResponse{
			ID:         profile.ID,
			FirstName:  profile.FirstName,
			LastName:   profile.LastName,
			MiddleName: profile.MiddleName,
			Phone:      profile.Phone,
			WorkStatus: profile.WorkStatus,
			CarPlate:   profile.CarPlate,
			CarModel:   profile.CarModel,
		})
	}
}

// DriversBalance returns the blocked balance for one driver.
func DriversBalance(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		driverID := chi.URLParam(r, "driverID")
		if driverID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "driver id required"))
			return
		}

		balance, err := svc.GetBlockedBalance(r.Context(), manager.ID, driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"blockedBalance": balance.String()})
	}
}

type driverUpdateRequest struct {
	FirstName  *string `json:"firstName,omitempty" validate:"omitempty,min=1"`
	LastName   *string `json:"lastName,omitempty" validate:"omitempty,min=1"`
	MiddleName *string `json:"middleName,omitempty"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,min=5"`
	WorkRuleID *string `json:"workRuleId,omitempty" validate:"omitempty,min=1"`
}

// DriversUpdate patches the mutable driver profile fields.
func DriversUpdate(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		driverID := chi.URLParam(r, "driverID")
		if driverID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "driver id required"))
			return
		}

		var payload driverUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patch := fleet.DriverPatch{
			FirstName:  payload.FirstName,
			LastName:   payload.LastName,
			MiddleName: payload.MiddleName,
			Phone:      payload.Phone,
			WorkRuleID: payload.WorkRuleID,
		}

		if err := svc.UpdateDriver(r.Context(), manager.ID, driverID, patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

type carUpdateRequest struct {
	Plate *string `json:"plate,omitempty" validate:"omitempty,min=1"`
	Model *string `json:"model,omitempty" validate:"omitempty,min=1"`
	Color *string `json:"color,omitempty"`
	Year  *string `json:"year,omitempty"`
}

// CarsUpdate patches the mutable vehicle fields.
func CarsUpdate(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		carID := chi.URLParam(r, "carID")
		if carID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "car id required"))
			return
		}

		var payload carUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patch := fleet.CarPatch{
			Plate: payload.Plate,
			Model: payload.Model,
			Color: payload.Color,
			Year:  payload.Year,
		}

		if err := svc.UpdateCar(r.Context(), manager.ID, carID, patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// WorkRules lists the work rules configured for the manager's park.
func WorkRules(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		rules, err := svc.GetWorkRules(r.Context(), manager.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"workRules": rules})
	}
}

// Fleets lists the parks reachable with the manager's credential bundle.
func Fleets(mgrSvc managers.Service, svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgrSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		manager := resolveManager(w, r, mgrSvc, logg)
		if manager == nil {
			return
		}

		parks, err := svc.ListFleets(r.Context(), manager.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"fleets": parks})
	}
}
