package agents

import (
	"context"
	"errors"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes agent persistence operations. Lookup methods return
// (nil, nil) when no row matches.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an agents repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads an agent by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// FindByPhone retrieves the agent keyed by the given normalized phone.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// FindByExternalID retrieves the agent carrying the given external-system id.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// FindByTelegramID retrieves the agent attached to the given telegram identity.
func (r *Repository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// Create inserts a new agent row.
func (r *Repository) Create(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

// Update persists the full agent row.
func (r *Repository) Update(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Save(agent).Error
}

// DetachTelegramID removes the telegram attachment from any agent other than
// the given one, so the unique index never blocks a last-writer-wins re-link.
func (r *Repository) DetachTelegramID(ctx context.Context, telegramID int64, keep uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("telegram_id = ? AND id <> ?", telegramID, keep).
		Update("telegram_id", nil).Error
}
