package managers

import (
	"context"
	"fmt"

	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/google/uuid"
)

type managerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Manager, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.Manager, error)
	FindByPhone(ctx context.Context, phone string) (*models.Manager, error)
	Create(ctx context.Context, manager *models.Manager) error
	Update(ctx context.Context, manager *models.Manager) error
	MergeInto(ctx context.Context, survivor, loser *models.Manager) error
}

// Identity carries the authenticated caller attributes used to locate or
// create a manager row.
type Identity struct {
	TelegramID int64
	FirstName  *string
	LastName   *string
	Username   *string
	Phone      *string
}

// Service exposes manager lifecycle operations.
type Service interface {
	GetOrCreate(ctx context.Context, identity Identity) (*models.Manager, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Manager, error)
	AttachPhone(ctx context.Context, managerID uuid.UUID, phone string) (*models.Manager, error)
}

type service struct {
	repo managerRepository
	logg *logger.Logger
}

// NewService builds a manager service with the provided repository.
func NewService(repo managerRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("manager repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// GetOrCreate resolves the manager row for the authenticated identity,
// creating one lazily when none exists. When the identity carries a phone,
// the phone-keyed and telegram-keyed rows are reconciled first.
func (s *service) GetOrCreate(ctx context.Context, identity Identity) (*models.Manager, error) {
	byTelegram, err := s.repo.FindByTelegramID(ctx, identity.TelegramID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up manager by telegram id")
	}

	var byPhone *models.Manager
	if identity.Phone != nil && *identity.Phone != "" {
		normalized, err := fleet.NormalizePhone(*identity.Phone)
		if err != nil {
			return nil, err
		}
		byPhone, err = s.repo.FindByPhone(ctx, normalized)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up manager by phone")
		}
		identity.Phone = &normalized
	}

	survivor, err := s.merge(ctx, byPhone, byTelegram)
	if err != nil {
		return nil, err
	}
	if survivor == nil {
		created := &models.Manager{
			TelegramID: &identity.TelegramID,
			Phone:      identity.Phone,
			FirstName:  identity.FirstName,
			LastName:   identity.LastName,
			Username:   identity.Username,
		}
		if err := s.repo.Create(ctx, created); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating manager")
		}
		return created, nil
	}

	if s.applyIdentity(survivor, identity) {
		if err := s.repo.Update(ctx, survivor); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating manager identity")
		}
	}
	return survivor, nil
}

// GetByID loads a manager, translating absence into NOT_FOUND.
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Manager, error) {
	manager, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading manager")
	}
	if manager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "manager not found")
	}
	return manager, nil
}

// AttachPhone records a normalized phone on the manager, reconciling with an
// existing phone-keyed row when one exists.
func (s *service) AttachPhone(ctx context.Context, managerID uuid.UUID, phone string) (*models.Manager, error) {
	normalized, err := fleet.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	manager, err := s.GetByID(ctx, managerID)
	if err != nil {
		return nil, err
	}
	byPhone, err := s.repo.FindByPhone(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up manager by phone")
	}
	survivor, err := s.merge(ctx, byPhone, manager)
	if err != nil {
		return nil, err
	}
	survivor.Phone = &normalized
	if err := s.repo.Update(ctx, survivor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attaching phone")
	}
	return survivor, nil
}

// merge reconciles the phone-keyed and telegram-keyed rows for one person.
// The phone-keyed row always survives a true merge; the telegram-only row is
// folded into it and deleted.
func (s *service) merge(ctx context.Context, byPhone, byTelegram *models.Manager) (*models.Manager, error) {
	switch {
	case byPhone == nil && byTelegram == nil:
		// neither: caller creates a fresh row
		return nil, nil
	case byTelegram == nil:
		// phoneOnly
		return byPhone, nil
	case byPhone == nil:
		// telegramOnly
		return byTelegram, nil
	case byPhone.ID == byTelegram.ID:
		// sameRow
		return byPhone, nil
	default:
		// distinctRows: phone record wins, telegram row folds in
		byPhone.TelegramID = byTelegram.TelegramID
		if byPhone.FirstName == nil {
			byPhone.FirstName = byTelegram.FirstName
		}
		if byPhone.LastName == nil {
			byPhone.LastName = byTelegram.LastName
		}
		if byPhone.Username == nil {
			byPhone.Username = byTelegram.Username
		}
		if byPhone.FleetParkID == nil && !byPhone.HasLegacyCredentials() {
			byPhone.FleetParkID = byTelegram.FleetParkID
			byPhone.LegacyAPIKey = byTelegram.LegacyAPIKey
			byPhone.LegacyParkID = byTelegram.LegacyParkID
			byPhone.LegacyClientID = byTelegram.LegacyClientID
		}
		if err := s.repo.MergeInto(ctx, byPhone, byTelegram); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merging manager rows")
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithManagerID(ctx, byPhone.ID.String()), "merged duplicate manager rows")
		}
		return byPhone, nil
	}
}

func (s *service) applyIdentity(manager *models.Manager, identity Identity) bool {
	changed := false
	if manager.TelegramID == nil || *manager.TelegramID != identity.TelegramID {
		manager.TelegramID = &identity.TelegramID
		changed = true
	}
	if identity.Phone != nil && (manager.Phone == nil || *manager.Phone != *identity.Phone) {
		manager.Phone = identity.Phone
		changed = true
	}
	if identity.FirstName != nil && manager.FirstName == nil {
		manager.FirstName = identity.FirstName
		changed = true
	}
	if identity.LastName != nil && manager.LastName == nil {
		manager.LastName = identity.LastName
		changed = true
	}
	if identity.Username != nil && manager.Username == nil {
		manager.Username = identity.Username
		changed = true
	}
	return changed
}
