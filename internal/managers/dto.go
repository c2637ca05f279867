package managers

import (
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ManagerDTO is the outward manager representation. Credential material is
// reduced to a boolean so keys never leave the service boundary.
type ManagerDTO struct {
	ID             uuid.UUID `json:"id"`
	TelegramID     *int64    `json:"telegramId,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	FirstName      *string   `json:"firstName,omitempty"`
	LastName       *string   `json:"lastName,omitempty"`
	Username       *string   `json:"username,omitempty"`
	HasCredentials bool      `json:"hasCredentials"`
}

// FromModel maps the persistence row to its outward representation.
func FromModel(manager *models.Manager) ManagerDTO {
	return ManagerDTO{
		ID:             manager.ID,
		TelegramID:     manager.TelegramID,
		Phone:          manager.Phone,
		FirstName:      manager.FirstName,
		LastName:       manager.LastName,
		Username:       manager.Username,
		HasCredentials: manager.FleetParkID != nil || manager.HasLegacyCredentials(),
	}
}
