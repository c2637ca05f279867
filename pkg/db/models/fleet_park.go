package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FleetPark is a shared bundle of external-system credentials. The API key is
// stored as a vault envelope and never leaves the security package in
// plaintext. Parks are immutable once validated; many managers may reference
// the same row.
type FleetPark struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name            string    `gorm:"column:name;not null"`
	ParkID          string    `gorm:"column:park_id;not null;index"`
	ClientID        string    `gorm:"column:client_id;not null"`
	APIKeyEncrypted string    `gorm:"column:api_key_encrypted;not null"`
	IsDefault       bool      `gorm:"column:is_default;not null;default:false"`
	ValidatedAt     *time.Time `gorm:"column:validated_at"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *FleetPark) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
