package drafts

import (
	"context"
	"errors"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes registration-draft persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a drafts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByAgentID loads the agent's draft, (nil, nil) when absent.
func (r *Repository) FindByAgentID(ctx context.Context, agentID uuid.UUID) (*models.RegistrationDraft, error) {
	var draft models.RegistrationDraft
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&draft).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// Create inserts a new draft row.
func (r *Repository) Create(ctx context.Context, draft *models.RegistrationDraft) error {
	return r.db.WithContext(ctx).Create(draft).Error
}

// Update persists the full draft row.
func (r *Repository) Update(ctx context.Context, draft *models.RegistrationDraft) error {
	return r.db.WithContext(ctx).Save(draft).Error
}
