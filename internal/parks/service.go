package parks

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/google/uuid"
)

type parkRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FleetPark, error)
	FindDefault(ctx context.Context) (*models.FleetPark, error)
	FindByParkAndClient(ctx context.Context, parkID, clientID string) (*models.FleetPark, error)
	Create(ctx context.Context, park *models.FleetPark) error
	Update(ctx context.Context, park *models.FleetPark) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type managerStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Manager, error)
	Update(ctx context.Context, manager *models.Manager) error
	ClearCredentials(ctx context.Context, managerID uuid.UUID) error
	CountByFleetParkID(ctx context.Context, parkID uuid.UUID) (int64, error)
}

type secretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

type credentialValidator interface {
	ValidateCredentials(ctx context.Context, creds fleet.Credentials) fleet.CredentialCheck
}

// SubmitParkInput carries the manager-supplied credential bundle.
type SubmitParkInput struct {
	Name     string
	APIKey   string
	ParkID   string
	ClientID string
}

// Service resolves, attaches and retires shared credential bundles.
type Service interface {
	Resolve(ctx context.Context, managerID uuid.UUID) (*fleet.Credentials, error)
	InvalidateCredentials(ctx context.Context, managerID uuid.UUID) error
	SubmitPark(ctx context.Context, managerID uuid.UUID, input SubmitParkInput) (*models.FleetPark, error)
	DetachPark(ctx context.Context, managerID uuid.UUID) error
}

type service struct {
	repo     parkRepository
	managers managerStore
	vault    secretCipher
	upstream credentialValidator
	defaults config.FleetConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a park service with the provided collaborators.
func NewService(repo parkRepository, managersRepo managerStore, vault secretCipher, upstream credentialValidator, defaults config.FleetConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("park repository required")
	}
	if managersRepo == nil {
		return nil, fmt.Errorf("manager repository required")
	}
	if vault == nil {
		return nil, fmt.Errorf("vault required")
	}
	if upstream == nil {
		return nil, fmt.Errorf("upstream validator required")
	}
	return &service{
		repo:     repo,
		managers: managersRepo,
		vault:    vault,
		upstream: upstream,
		defaults: defaults,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Resolve returns the manager's working credential bundle, or nil when none
// is configured. Precedence: shared park reference, then legacy plaintext
// fields, then the deployment-wide default bundle. Decryption failure is
// treated as "not configured", never surfaced as an error.
func (s *service) Resolve(ctx context.Context, managerID uuid.UUID) (*fleet.Credentials, error) {
	manager, err := s.managers.FindByID(ctx, managerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading manager")
	}
	if manager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "manager not found")
	}

	if manager.FleetParkID != nil {
		creds := s.resolvePark(ctx, *manager.FleetParkID)
		if creds != nil {
			return creds, nil
		}
		// stale or undecryptable reference: fall through to nothing rather
		// than failing the request
		return nil, nil
	}

	if manager.HasLegacyCredentials() {
		return &fleet.Credentials{
			APIKey:   *manager.LegacyAPIKey,
			ParkID:   *manager.LegacyParkID,
			ClientID: *manager.LegacyClientID,
		}, nil
	}

	if s.defaults.HasDefaultPark() {
		return s.attachDefaultPark(ctx, manager)
	}
	return nil, nil
}

func (s *service) resolvePark(ctx context.Context, parkRef uuid.UUID) *fleet.Credentials {
	park, err := s.repo.FindByID(ctx, parkRef)
	if err != nil || park == nil {
		if err != nil && s.logg != nil {
			s.logg.Error(ctx, "loading referenced park", err)
		}
		return nil
	}
	apiKey, err := s.vault.Decrypt(park.APIKeyEncrypted)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithParkID(ctx, park.ParkID), "decrypting park credentials", err)
		}
		return nil
	}
	return &fleet.Credentials{APIKey: apiKey, ParkID: park.ParkID, ClientID: park.ClientID}
}

// attachDefaultPark materializes the configured deployment-wide bundle into a
// singleton park row and references it from the manager. The bundle is
// re-validated against the upstream on every fresh attachment.
func (s *service) attachDefaultPark(ctx context.Context, manager *models.Manager) (*fleet.Credentials, error) {
	creds := fleet.Credentials{
		APIKey:   s.defaults.DefaultAPIKey,
		ParkID:   s.defaults.DefaultParkID,
		ClientID: s.defaults.DefaultClientID,
	}
	check := s.upstream.ValidateCredentials(ctx, creds)
	if !check.OK {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithParkID(ctx, creds.ParkID), "default park bundle rejected by upstream: "+check.Message)
		}
		return nil, nil
	}

	park, err := s.repo.FindDefault(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading default park")
	}
	if park == nil {
		encrypted, err := s.vault.Encrypt(creds.APIKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "encrypting default park key")
		}
		validatedAt := s.now()
		park = &models.FleetPark{
			Name:            "default",
			ParkID:          creds.ParkID,
			ClientID:        creds.ClientID,
			APIKeyEncrypted: encrypted,
			IsDefault:       true,
			ValidatedAt:     &validatedAt,
		}
		if err := s.repo.Create(ctx, park); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "materializing default park")
		}
	}

	manager.FleetParkID = &park.ID
	if err := s.managers.Update(ctx, manager); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attaching default park")
	}
	return &creds, nil
}

// InvalidateCredentials clears every stored credential reference for the
// manager so the next resolution returns nothing. Called when the upstream
// rejects the resolved bundle with an authorization failure.
func (s *service) InvalidateCredentials(ctx context.Context, managerID uuid.UUID) error {
	if err := s.managers.ClearCredentials(ctx, managerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing manager credentials")
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithManagerID(ctx, managerID.String()), "stored credentials invalidated after upstream auth failure")
	}
	return nil
}

// SubmitPark validates the supplied bundle against the upstream, encrypts the
// key and references the resulting shared park row from the manager.
func (s *service) SubmitPark(ctx context.Context, managerID uuid.UUID, input SubmitParkInput) (*models.FleetPark, error) {
	if input.APIKey == "" || input.ParkID == "" || input.ClientID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "apiKey, parkId and clientId are required")
	}
	manager, err := s.managers.FindByID(ctx, managerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading manager")
	}
	if manager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "manager not found")
	}

	creds := fleet.Credentials{APIKey: input.APIKey, ParkID: input.ParkID, ClientID: input.ClientID}
	check := s.upstream.ValidateCredentials(ctx, creds)
	if !check.OK {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, check.Message).
			WithDetails(map[string]any{"statusCode": check.StatusCode})
	}

	park, err := s.repo.FindByParkAndClient(ctx, input.ParkID, input.ClientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up park")
	}
	if park == nil {
		encrypted, err := s.vault.Encrypt(input.APIKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "encrypting park key")
		}
		name := input.Name
		if name == "" {
			name = input.ParkID
		}
		validatedAt := s.now()
		park = &models.FleetPark{
			Name:            name,
			ParkID:          input.ParkID,
			ClientID:        input.ClientID,
			APIKeyEncrypted: encrypted,
			ValidatedAt:     &validatedAt,
		}
		if err := s.repo.Create(ctx, park); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating park")
		}
	}

	previous := manager.FleetParkID
	manager.FleetParkID = &park.ID
	manager.LegacyAPIKey = nil
	manager.LegacyParkID = nil
	manager.LegacyClientID = nil
	if err := s.managers.Update(ctx, manager); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "referencing park")
	}
	if previous != nil && *previous != park.ID {
		s.retireIfOrphaned(ctx, *previous)
	}
	return park, nil
}

// DetachPark drops the manager's park reference. The shared row itself is
// removed only when the last manager detaches and the row is not the
// deployment default.
func (s *service) DetachPark(ctx context.Context, managerID uuid.UUID) error {
	manager, err := s.managers.FindByID(ctx, managerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading manager")
	}
	if manager == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "manager not found")
	}
	if manager.FleetParkID == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "manager has no park configured")
	}
	parkRef := *manager.FleetParkID
	if err := s.managers.ClearCredentials(ctx, managerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detaching park")
	}
	s.retireIfOrphaned(ctx, parkRef)
	return nil
}

func (s *service) retireIfOrphaned(ctx context.Context, parkRef uuid.UUID) {
	count, err := s.managers.CountByFleetParkID(ctx, parkRef)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "counting park references", err)
		}
		return
	}
	if count > 0 {
		return
	}
	park, err := s.repo.FindByID(ctx, parkRef)
	if err != nil || park == nil || park.IsDefault {
		return
	}
	if err := s.repo.Delete(ctx, parkRef); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithParkID(ctx, park.ParkID), "deleting orphaned park", err)
	}
}
