package models

import (
	"time"

	"github.com/fleetdesk/fleetdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistrationDraft is the work-in-progress registration form owned by exactly
// one agent. Arbitrary partial updates are allowed while in_progress; once
// submitted the row is frozen.
type RegistrationDraft struct {
	ID      uuid.UUID         `gorm:"type:uuid;primaryKey"`
	AgentID uuid.UUID         `gorm:"column:agent_id;type:uuid;not null;uniqueIndex"`
	Status  enums.DraftStatus `gorm:"column:status;not null;default:'in_progress'"`

	FirstName  *string `gorm:"column:first_name"`
	LastName   *string `gorm:"column:last_name"`
	MiddleName *string `gorm:"column:middle_name"`
	Phone      *string `gorm:"column:phone"`
	CarPlate   *string `gorm:"column:car_plate"`
	CarModel   *string `gorm:"column:car_model"`
	CarColor   *string `gorm:"column:car_color"`
	CarYear    *string `gorm:"column:car_year"`

	SubmittedAt *time.Time `gorm:"column:submitted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *RegistrationDraft) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
