package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/fleetdesk/fleetdesk-backend/pkg/enums"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/google/uuid"
)

type draftRepository interface {
	FindByAgentID(ctx context.Context, agentID uuid.UUID) (*models.RegistrationDraft, error)
	Create(ctx context.Context, draft *models.RegistrationDraft) error
	Update(ctx context.Context, draft *models.RegistrationDraft) error
}

// Patch carries a partial field update; nil fields are left untouched.
type Patch struct {
	FirstName  *string
	LastName   *string
	MiddleName *string
	Phone      *string
	CarPlate   *string
	CarModel   *string
	CarColor   *string
	CarYear    *string
}

// Service manages the one registration draft each agent owns.
type Service interface {
	Get(ctx context.Context, agentID uuid.UUID) (*models.RegistrationDraft, error)
	Apply(ctx context.Context, agentID uuid.UUID, patch Patch) (*models.RegistrationDraft, error)
	Submit(ctx context.Context, agentID uuid.UUID) (*models.RegistrationDraft, error)
}

type service struct {
	repo draftRepository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a draft service with the provided repository.
func NewService(repo draftRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("draft repository required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

// Get returns the agent's draft, creating an empty in_progress one on first
// access.
func (s *service) Get(ctx context.Context, agentID uuid.UUID) (*models.RegistrationDraft, error) {
	draft, err := s.repo.FindByAgentID(ctx, agentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading draft")
	}
	if draft != nil {
		return draft, nil
	}
	draft = &models.RegistrationDraft{AgentID: agentID, Status: enums.DraftInProgress}
	if err := s.repo.Create(ctx, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating draft")
	}
	return draft, nil
}

// Apply merges a partial update into the draft. Only in_progress drafts may
// be mutated; a submitted draft is frozen.
func (s *service) Apply(ctx context.Context, agentID uuid.UUID, patch Patch) (*models.RegistrationDraft, error) {
	draft, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if draft.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "draft already submitted")
	}

	if patch.Phone != nil {
		normalized, err := fleet.NormalizePhone(*patch.Phone)
		if err != nil {
			return nil, err
		}
		patch.Phone = &normalized
	}
	applyField(&draft.FirstName, patch.FirstName)
	applyField(&draft.LastName, patch.LastName)
	applyField(&draft.MiddleName, patch.MiddleName)
	applyField(&draft.Phone, patch.Phone)
	applyField(&draft.CarPlate, patch.CarPlate)
	applyField(&draft.CarModel, patch.CarModel)
	applyField(&draft.CarColor, patch.CarColor)
	applyField(&draft.CarYear, patch.CarYear)

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving draft")
	}
	return draft, nil
}

// Submit freezes the draft. Required fields are checked before anything else
// happens; a rejected submit leaves the draft in_progress and untouched.
func (s *service) Submit(ctx context.Context, agentID uuid.UUID) (*models.RegistrationDraft, error) {
	draft, err := s.repo.FindByAgentID(ctx, agentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading draft")
	}
	if draft == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	if draft.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "draft already submitted")
	}

	if missing := missingFields(draft); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "required fields missing").
			WithDetails(map[string]any{"missing": missing})
	}

	submittedAt := s.now()
	draft.Status = enums.DraftDone
	draft.SubmittedAt = &submittedAt
	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "submitting draft")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "agent_id", agentID.String()), "registration draft submitted")
	}
	return draft, nil
}

func missingFields(draft *models.RegistrationDraft) []string {
	missing := make([]string, 0, 4)
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"firstName", draft.FirstName},
		{"lastName", draft.LastName},
		{"phone", draft.Phone},
		{"carPlate", draft.CarPlate},
		{"carModel", draft.CarModel},
	} {
		if field.value == nil || *field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

func applyField(dst **string, src *string) {
	if src != nil {
		*dst = src
	}
}
