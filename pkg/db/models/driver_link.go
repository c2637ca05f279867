package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DriverLink associates a manager with an external driver record. The cached
// name/phone allow offline display when the upstream is unreachable.
type DriverLink struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ManagerID   uuid.UUID `gorm:"column:manager_id;type:uuid;not null;uniqueIndex:idx_driver_links_manager_driver"`
	DriverID    string    `gorm:"column:driver_id;not null;uniqueIndex:idx_driver_links_manager_driver"`
	DriverName  *string   `gorm:"column:driver_name"`
	DriverPhone *string   `gorm:"column:driver_phone"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *DriverLink) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
