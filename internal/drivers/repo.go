package drivers

import (
	"context"
	"errors"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes driver-link persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a driver-links repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts or refreshes the link keyed by (manager, driver), updating
// the cached display fields on conflict.
func (r *Repository) Upsert(ctx context.Context, link *models.DriverLink) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "manager_id"}, {Name: "driver_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"driver_name", "driver_phone", "updated_at"}),
		}).
		Create(link).Error
}

// Find loads one link, (nil, nil) when absent.
func (r *Repository) Find(ctx context.Context, managerID uuid.UUID, driverID string) (*models.DriverLink, error) {
	var link models.DriverLink
	err := r.db.WithContext(ctx).
		Where("manager_id = ? AND driver_id = ?", managerID, driverID).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListByManager returns every link owned by the manager.
func (r *Repository) ListByManager(ctx context.Context, managerID uuid.UUID) ([]models.DriverLink, error) {
	var links []models.DriverLink
	err := r.db.WithContext(ctx).
		Where("manager_id = ?", managerID).
		Order("created_at").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Delete removes one link, reporting whether a row existed.
func (r *Repository) Delete(ctx context.Context, managerID uuid.UUID, driverID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("manager_id = ? AND driver_id = ?", managerID, driverID).
		Delete(&models.DriverLink{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
