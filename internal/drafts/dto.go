package drafts

import (
	"time"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/fleetdesk/fleetdesk-backend/pkg/enums"
	"github.com/google/uuid"
)

// DraftDTO is the outward representation of a registration draft.
type DraftDTO struct {
	ID          uuid.UUID         `json:"id"`
	Status      enums.DraftStatus `json:"status"`
	FirstName   *string           `json:"firstName,omitempty"`
	LastName    *string           `json:"lastName,omitempty"`
	MiddleName  *string           `json:"middleName,omitempty"`
	Phone       *string           `json:"phone,omitempty"`
	CarPlate    *string           `json:"carPlate,omitempty"`
	CarModel    *string           `json:"carModel,omitempty"`
	CarColor    *string           `json:"carColor,omitempty"`
	CarYear     *string           `json:"carYear,omitempty"`
	SubmittedAt *time.Time        `json:"submittedAt,omitempty"`
}

// FromModel maps the persistence row to its outward representation.
func FromModel(draft *models.RegistrationDraft) DraftDTO {
	return DraftDTO{
		ID:          draft.ID,
		Status:      draft.Status,
		FirstName:   draft.FirstName,
		LastName:    draft.LastName,
		MiddleName:  draft.MiddleName,
		Phone:       draft.Phone,
		CarPlate:    draft.CarPlate,
		CarModel:    draft.CarModel,
		CarColor:    draft.CarColor,
		CarYear:     draft.CarYear,
		SubmittedAt: draft.SubmittedAt,
	}
}
