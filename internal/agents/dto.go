package agents

import (
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
)

// AgentDTO is the outward representation of a linked agent.
type AgentDTO struct {
	ID         uuid.UUID `json:"id"`
	Phone      string    `json:"phone"`
	ExternalID *string   `json:"externalId,omitempty"`
	TelegramID *int64    `json:"telegramId,omitempty"`
	FirstName  *string   `json:"firstName,omitempty"`
	LastName   *string   `json:"lastName,omitempty"`
	Username   *string   `json:"username,omitempty"`
	IsActive   bool      `json:"isActive"`
}

// FromModel maps the persistence row to its outward representation.
func FromModel(agent *models.Agent) AgentDTO {
	return AgentDTO{
		ID:         agent.ID,
		Phone:      agent.Phone,
		ExternalID: agent.ExternalID,
		TelegramID: agent.TelegramID,
		FirstName:  agent.FirstName,
		LastName:   agent.LastName,
		Username:   agent.Username,
		IsActive:   agent.IsActive,
	}
}
