package managers

import (
	"context"
	"errors"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes manager persistence operations. Lookup methods return
// (nil, nil) when no row matches so callers can treat absence as data.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a managers repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a manager by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Manager, error) {
	var manager models.Manager
	err := r.db.WithContext(ctx).First(&manager, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

// FindByTelegramID retrieves the manager attached to the given telegram identity.
func (r *Repository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.Manager, error) {
	var manager models.Manager
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&manager).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

// FindByPhone retrieves the manager keyed by the given normalized phone.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*models.Manager, error) {
	var manager models.Manager
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&manager).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

// Create inserts a new manager row.
func (r *Repository) Create(ctx context.Context, manager *models.Manager) error {
	return r.db.WithContext(ctx).Create(manager).Error
}

// Update persists the full manager row.
func (r *Repository) Update(ctx context.Context, manager *models.Manager) error {
	return r.db.WithContext(ctx).Save(manager).Error
}

// ClearCredentials wipes both the shared-park reference and the legacy
// credential triple so the next resolution returns nothing.
func (r *Repository) ClearCredentials(ctx context.Context, managerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Manager{}).
		Where("id = ?", managerID).
		Updates(map[string]any{
			"fleet_park_id":    nil,
			"legacy_api_key":   nil,
			"legacy_park_id":   nil,
			"legacy_client_id": nil,
		}).Error
}

// CountByFleetParkID reports how many managers reference the given park.
func (r *Repository) CountByFleetParkID(ctx context.Context, parkID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Manager{}).
		Where("fleet_park_id = ?", parkID).
		Count(&count).Error
	return count, err
}

// MergeInto folds the loser row into the survivor inside one transaction:
// colliding driver links are dropped, the remainder reassigned, the loser
// deleted and the survivor saved with its merged fields.
func (r *Repository) MergeInto(ctx context.Context, survivor, loser *models.Manager) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		survivorDrivers := tx.Model(&models.DriverLink{}).
			Select("driver_id").
			Where("manager_id = ?", survivor.ID)
		if err := tx.
			Where("manager_id = ? AND driver_id IN (?)", loser.ID, survivorDrivers).
			Delete(&models.DriverLink{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DriverLink{}).
			Where("manager_id = ?", loser.ID).
			Update("manager_id", survivor.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Manager{}, "id = ?", loser.ID).Error; err != nil {
			return err
		}
		return tx.Save(survivor).Error
	})
}
