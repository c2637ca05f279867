package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agent is a phone-identified business entity eligible to register executors.
// Rows are never hard-deleted; deactivation flips IsActive.
type Agent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Phone      string    `gorm:"column:phone;not null;uniqueIndex"`
	ExternalID *string   `gorm:"column:external_id;index"`
	TelegramID *int64    `gorm:"column:telegram_id;uniqueIndex"`
	FirstName  *string   `gorm:"column:first_name"`
	LastName   *string   `gorm:"column:last_name"`
	Username   *string   `gorm:"column:username"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Agent) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
