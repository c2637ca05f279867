package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Manager administers a fleet. It either references a shared FleetPark or
// carries legacy per-record plaintext credentials; the resolver prefers
// the park reference.
type Manager struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TelegramID  *int64     `gorm:"column:telegram_id;uniqueIndex"`
	Phone       *string    `gorm:"column:phone;index"`
	FirstName   *string    `gorm:"column:first_name"`
	LastName    *string    `gorm:"column:last_name"`
	Username    *string    `gorm:"column:username"`
	FleetParkID *uuid.UUID `gorm:"column:fleet_park_id;index"`

	// Legacy credential fields predate FleetPark and are only consulted when
	// no park is referenced.
	LegacyAPIKey   *string `gorm:"column:legacy_api_key"`
	LegacyParkID   *string `gorm:"column:legacy_park_id"`
	LegacyClientID *string `gorm:"column:legacy_client_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Manager) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// HasLegacyCredentials reports whether all three legacy fields are present.
func (m *Manager) HasLegacyCredentials() bool {
	return m.LegacyAPIKey != nil && *m.LegacyAPIKey != "" &&
		m.LegacyParkID != nil && *m.LegacyParkID != "" &&
		m.LegacyClientID != nil && *m.LegacyClientID != ""
}
