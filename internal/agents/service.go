package agents

import (
	"context"
	"fmt"

	"github.com/fleetdesk/fleetdesk-backend/pkg/agentcheck"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/google/uuid"
)

type agentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	FindByPhone(ctx context.Context, phone string) (*models.Agent, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Agent, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.Agent, error)
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, agent *models.Agent) error
	DetachTelegramID(ctx context.Context, telegramID int64, keep uuid.UUID) error
}

type identityChecker interface {
	Check(ctx context.Context, phone string) (*agentcheck.Result, error)
}

// Identity carries the verified caller attributes attached to an agent on link.
type Identity struct {
	TelegramID int64
	FirstName  *string
	LastName   *string
	Username   *string
}

// Service links phone-identified agents to telegram identities.
type Service interface {
	Link(ctx context.Context, phone string, identity Identity) (*models.Agent, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Agent, error)
}

type service struct {
	repo    agentRepository
	checker identityChecker
	logg    *logger.Logger
}

// NewService builds an agent linker. The checker is optional; without it a
// phone with no local record cannot be linked.
func NewService(repo agentRepository, checker identityChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("agent repository required")
	}
	return &service{repo: repo, checker: checker, logg: logg}, nil
}

// Link resolves the agent for the given phone, consulting the external
// validation webhook when no active local record exists, and attaches the
// telegram identity to the resolved row. The attachment is last-writer-wins:
// a prior attachment of the same identity to another agent is released.
// At most one agent row is created or mutated per call.
func (s *service) Link(ctx context.Context, phone string, identity Identity) (*models.Agent, error) {
	normalized, err := fleet.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	agent, err := s.repo.FindByPhone(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up agent by phone")
	}
	if agent == nil || !agent.IsActive {
		agent, err = s.resolveExternally(ctx, normalized)
		if err != nil {
			return nil, err
		}
	}

	return s.attachIdentity(ctx, agent, identity)
}

// GetByTelegramID loads the agent attached to a telegram identity.
func (s *service) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Agent, error) {
	agent, err := s.repo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up agent by telegram id")
	}
	if agent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found")
	}
	return agent, nil
}

func (s *service) resolveExternally(ctx context.Context, phone string) (*models.Agent, error) {
	if s.checker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found")
	}
	result, err := s.checker.Check(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !result.Found || !result.IsActive {
		message := result.Message
		if message == "" {
			message = "agent not found or inactive"
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return s.upsert(ctx, phone, result)
}

// upsert records the external verdict on exactly one row: matched first by
// external id, then by phone, created otherwise.
func (s *service) upsert(ctx context.Context, phone string, result *agentcheck.Result) (*models.Agent, error) {
	var agent *models.Agent
	var err error
	if result.ExternalID != "" {
		agent, err = s.repo.FindByExternalID(ctx, result.ExternalID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up agent by external id")
		}
	}
	if agent == nil {
		agent, err = s.repo.FindByPhone(ctx, phone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up agent by phone")
		}
	}

	if agent == nil {
		agent = &models.Agent{Phone: phone, IsActive: result.IsActive}
		if result.ExternalID != "" {
			agent.ExternalID = &result.ExternalID
		}
		if err := s.repo.Create(ctx, agent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating agent")
		}
		return agent, nil
	}

	agent.Phone = phone
	agent.IsActive = result.IsActive
	if result.ExternalID != "" {
		agent.ExternalID = &result.ExternalID
	}
	if err := s.repo.Update(ctx, agent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating agent")
	}
	return agent, nil
}

func (s *service) attachIdentity(ctx context.Context, agent *models.Agent, identity Identity) (*models.Agent, error) {
	if err := s.repo.DetachTelegramID(ctx, identity.TelegramID, agent.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing prior telegram attachment")
	}
	agent.TelegramID = &identity.TelegramID
	if identity.FirstName != nil {
		agent.FirstName = identity.FirstName
	}
	if identity.LastName != nil {
		agent.LastName = identity.LastName
	}
	if identity.Username != nil {
		agent.Username = identity.Username
	}
	if err := s.repo.Update(ctx, agent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attaching telegram identity")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithTelegramID(ctx, identity.TelegramID), "agent linked")
	}
	return agent, nil
}
