package parks

import (
	"context"
	"errors"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes fleet-park persistence operations. Lookup methods return
// (nil, nil) when no row matches.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a parks repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a park by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FleetPark, error) {
	var park models.FleetPark
	err := r.db.WithContext(ctx).First(&park, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &park, nil
}

// FindDefault returns the deployment-wide shared park row, if materialized.
func (r *Repository) FindDefault(ctx context.Context) (*models.FleetPark, error) {
	var park models.FleetPark
	err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&park).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &park, nil
}

// FindByParkAndClient locates an existing shared bundle for the same upstream
// park/client pair.
func (r *Repository) FindByParkAndClient(ctx context.Context, parkID, clientID string) (*models.FleetPark, error) {
	var park models.FleetPark
	err := r.db.WithContext(ctx).
		Where("park_id = ? AND client_id = ?", parkID, clientID).
		First(&park).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &park, nil
}

// Create inserts a new park row.
func (r *Repository) Create(ctx context.Context, park *models.FleetPark) error {
	return r.db.WithContext(ctx).Create(park).Error
}

// Update persists the full park row.
func (r *Repository) Update(ctx context.Context, park *models.FleetPark) error {
	return r.db.WithContext(ctx).Save(park).Error
}

// Delete removes a park row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.FleetPark{}, "id = ?", id).Error
}
