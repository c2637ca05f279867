package drivers

import (
	"context"
	"fmt"

	"github.com/fleetdesk/fleetdesk-backend/pkg/cache"
	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type credentialSource interface {
	Resolve(ctx context.Context, managerID uuid.UUID) (*fleet.Credentials, error)
	InvalidateCredentials(ctx context.Context, managerID uuid.UUID) error
}

type fleetAPI interface {
	ListParkDrivers(ctx context.Context, creds fleet.Credentials, diag fleet.DiagnosticsSink) ([]fleet.DriverProfile, error)
	FindDriverByPhone(ctx context.Context, creds fleet.Credentials, phone string) (*fleet.DriverProfile, error)
	GetDriversStatus(ctx context.Context, creds fleet.Credentials, ids []string) (map[string]string, error)
	GetDriverProfileByID(ctx context.Context, creds fleet.Credentials, driverID string) (*fleet.DriverProfile, error)
	GetContractorBlockedBalance(ctx context.Context, creds fleet.Credentials, driverID string) (decimal.Decimal, error)
	GetDriverWorkRules(ctx context.Context, creds fleet.Credentials) ([]fleet.WorkRule, error)
	UpdateDriverProfile(ctx context.Context, creds fleet.Credentials, driverID string, patch fleet.DriverPatch) error
	UpdateCar(ctx context.Context, creds fleet.Credentials, carID string, patch fleet.CarPatch) error
	GetFleetList(ctx context.Context, creds fleet.Credentials) ([]fleet.Park, error)
}

type linkRepository interface {
	Upsert(ctx context.Context, link *models.DriverLink) error
	Find(ctx context.Context, managerID uuid.UUID, driverID string) (*models.DriverLink, error)
	ListByManager(ctx context.Context, managerID uuid.UUID) ([]models.DriverLink, error)
	Delete(ctx context.Context, managerID uuid.UUID, driverID string) (bool, error)
}

// DriverDTO is the outward driver representation for the listing surface.
type DriverDTO struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	Phone      string  `json:"phone,omitempty"`
	WorkStatus string  `json:"workStatus,omitempty"`
	CarPlate   string  `json:"carPlate,omitempty"`
	CarModel   string  `json:"carModel,omitempty"`
	Linked     bool    `json:"linked"`
}

// DriverListDTO carries the listing plus an operator hint assembled from the
// parse diagnostics when the upstream list is empty or partially unparsable.
type DriverListDTO struct {
	Drivers []DriverDTO `json:"drivers"`
	Hint    string      `json:"hint,omitempty"`
}

// LinkDriverInput identifies the driver to link, by upstream id or by phone.
type LinkDriverInput struct {
	DriverID string
	Phone    string
}

type cachedList struct {
	profiles []fleet.DriverProfile
	hint     string
}

// Service exposes the manager-facing driver operations. Every call resolves
// the manager's credentials first; an upstream authorization rejection clears
// them so the next resolution starts clean.
type Service interface {
	ListDrivers(ctx context.Context, managerID uuid.UUID) (*DriverListDTO, error)
	LinkDriver(ctx context.Context, managerID uuid.UUID, input LinkDriverInput) (*models.DriverLink, error)
	UnlinkDriver(ctx context.Context, managerID uuid.UUID, driverID string) error
	DriversStatus(ctx context.Context, managerID uuid.UUID, ids []string) (map[string]string, error)
	GetDriver(ctx context.Context, managerID uuid.UUID, driverID string) (*fleet.DriverProfile, error)
	GetBlockedBalance(ctx context.Context, managerID uuid.UUID, driverID string) (decimal.Decimal, error)
	GetWorkRules(ctx context.Context, managerID uuid.UUID) ([]fleet.WorkRule, error)
	UpdateDriver(ctx context.Context, managerID uuid.UUID, driverID string, patch fleet.DriverPatch) error
	UpdateCar(ctx context.Context, managerID uuid.UUID, carID string, patch fleet.CarPatch) error
	ListFleets(ctx context.Context, managerID uuid.UUID) ([]fleet.Park, error)
}

type service struct {
	creds    credentialSource
	upstream fleetAPI
	links    linkRepository
	cache    *cache.TTL[cachedList]
	cacheCfg config.CacheConfig
	logg     *logger.Logger
}

// NewService builds a driver service with the provided collaborators. The
// cache may be nil to disable list caching.
func NewService(creds credentialSource, upstream fleetAPI, links linkRepository, listCache *cache.TTL[cachedList], cacheCfg config.CacheConfig, logg *logger.Logger) (Service, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential source required")
	}
	if upstream == nil {
		return nil, fmt.Errorf("fleet client required")
	}
	if links == nil {
		return nil, fmt.Errorf("link repository required")
	}
	return &service{
		creds:    creds,
		upstream: upstream,
		links:    links,
		cache:    listCache,
		cacheCfg: cacheCfg,
		logg:     logg,
	}, nil
}

// NewListCache builds the process-local driver-list cache.
func NewListCache(clock cache.Clock) *cache.TTL[cachedList] {
	return cache.NewTTL[cachedList](clock)
}

var errNoCredentials = pkgerrors.New(pkgerrors.CodeNotFound, "fleet credentials are not configured")

func (s *service) resolve(ctx context.Context, managerID uuid.UUID) (fleet.Credentials, error) {
	creds, err := s.creds.Resolve(ctx, managerID)
	if err != nil {
		return fleet.Credentials{}, err
	}
	if creds == nil {
		return fleet.Credentials{}, errNoCredentials
	}
	return *creds, nil
}

// guard reacts to upstream failures: an authorization rejection invalidates
// the manager's stored credentials before the error is surfaced.
func (s *service) guard(ctx context.Context, managerID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	if fleet.IsAuthRejection(err) {
		if invErr := s.creds.InvalidateCredentials(ctx, managerID); invErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithManagerID(ctx, managerID.String()), "invalidating credentials", invErr)
		}
	}
	return err
}

// ListDrivers returns the park listing, served from the process-local cache
// within the configured TTL.
func (s *service) ListDrivers(ctx context.Context, managerID uuid.UUID) (*DriverListDTO, error) {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return nil, err
	}

	key := cache.Key{ManagerID: managerID.String(), ParkID: creds.ParkID}
	listing, ok := s.cachedListing(key)
	if !ok {
		var diag fleet.ListDiagnostics
		profiles, err := s.upstream.ListParkDrivers(ctx, creds, &diag)
		if err != nil {
			return nil, s.guard(ctx, managerID, err)
		}
		listing = cachedList{profiles: profiles, hint: s.listHint(ctx, profiles, &diag)}
		if s.cache != nil {
			s.cache.Set(key, listing, s.cacheCfg.DriverListTTL)
		}
	}

	links, err := s.links.ListByManager(ctx, managerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading driver links")
	}
	linked := make(map[string]struct{}, len(links))
	for _, link := range links {
		linked[link.DriverID] = struct{}{}
	}

	out := &DriverListDTO{Drivers: make([]DriverDTO, 0, len(listing.profiles)), Hint: listing.hint}
	for _, profile := range listing.profiles {
		_, isLinked := linked[profile.ID]
		out.Drivers = append(out.Drivers, DriverDTO{
			ID:         profile.ID,
			Name:       profile.DisplayName(),
			Phone:      profile.Phone,
			WorkStatus: profile.WorkStatus,
			CarPlate:   profile.CarPlate,
			CarModel:   profile.CarModel,
			Linked:     isLinked,
		})
	}
	return out, nil
}

func (s *service) cachedListing(key cache.Key) (cachedList, bool) {
	if s.cache == nil {
		return cachedList{}, false
	}
	return s.cache.Get(key)
}

// listHint turns parse diagnostics into an actionable operator message. An
// empty string means nothing noteworthy happened.
func (s *service) listHint(ctx context.Context, profiles []fleet.DriverProfile, diag *fleet.ListDiagnostics) string {
	if len(profiles) == 0 && diag.RawCount == 0 {
		if len(diag.EmptyKeys) > 0 {
			return fmt.Sprintf("upstream returned no driver list; response keys: %v. Check that the API key has access to this park", diag.EmptyKeys)
		}
		return "the park has no drivers, or the API key lacks list permissions"
	}
	if diag.ParsedCount < diag.RawCount {
		if diag.Sample != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "sample", string(diag.Sample)), "unparsable driver records in upstream response")
		}
		return fmt.Sprintf("parsed %d of %d driver records; the rest had an unexpected shape", diag.ParsedCount, diag.RawCount)
	}
	return ""
}

// LinkDriver associates a park driver with the manager, caching name/phone
// for offline display. The driver may be addressed by id or by phone.
func (s *service) LinkDriver(ctx context.Context, managerID uuid.UUID, input LinkDriverInput) (*models.DriverLink, error) {
	if input.DriverID == "" && input.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driverId or phone is required")
	}
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return nil, err
	}

	var profile *fleet.DriverProfile
	if input.DriverID != "" {
		profile, err = s.upstream.GetDriverProfileByID(ctx, creds, input.DriverID)
	} else {
		profile, err = s.upstream.FindDriverByPhone(ctx, creds, input.Phone)
	}
	if err != nil {
		return nil, s.guard(ctx, managerID, err)
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found in park")
	}

	link := &models.DriverLink{
		ManagerID:  managerID,
		DriverID:   profile.ID,
		DriverName: profile.DisplayName(),
	}
	if profile.Phone != "" {
		link.DriverPhone = &profile.Phone
	}
	if err := s.links.Upsert(ctx, link); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving driver link")
	}
	return link, nil
}

// UnlinkDriver removes the association; absent links are NOT_FOUND.
func (s *service) UnlinkDriver(ctx context.Context, managerID uuid.UUID, driverID string) error {
	removed, err := s.links.Delete(ctx, managerID, driverID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing driver link")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "driver link not found")
	}
	return nil
}

// DriversStatus batch-reads work statuses; empty input yields an empty map.
func (s *service) DriversStatus(ctx context.Context, managerID uuid.UUID, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.upstream.GetDriversStatus(ctx, creds, ids)
	if err != nil {
		return nil, s.guard(ctx, managerID, err)
	}
	return statuses, nil
}

func (s *service) GetDriver(ctx context.Context, managerID uuid.UUID, driverID string) (*fleet.DriverProfile, error) {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return nil, err
	}
	profile, err := s.upstream.GetDriverProfileByID(ctx, creds, driverID)
	if err != nil {
		return nil, s.guard(ctx, managerID, err)
	}
	return profile, nil
}

func (s *service) GetBlockedBalance(ctx context.Context, managerID uuid.UUID, driverID string) (decimal.Decimal, error) {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := s.upstream.GetContractorBlockedBalance(ctx, creds, driverID)
	if err != nil {
		return decimal.Zero, s.guard(ctx, managerID, err)
	}
	return balance, nil
}

func (s *service) GetWorkRules(ctx context.Context, managerID uuid.UUID) ([]fleet.WorkRule, error) {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return nil, err
	}
	rules, err := s.upstream.GetDriverWorkRules(ctx, creds)
	if err != nil {
		return nil, s.guard(ctx, managerID, err)
	}
	return rules, nil
}

func (s *service) UpdateDriver(ctx context.Context, managerID uuid.UUID, driverID string, patch fleet.DriverPatch) error {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return err
	}
	if err := s.upstream.UpdateDriverProfile(ctx, creds, driverID, patch); err != nil {
		return s.guard(ctx, managerID, err)
	}
	s.dropCached(managerID, creds.ParkID)
	return nil
}

func (s *service) UpdateCar(ctx context.Context, managerID uuid.UUID, carID string, patch fleet.CarPatch) error {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return err
	}
	if err := s.upstream.UpdateCar(ctx, creds, carID, patch); err != nil {
		return s.guard(ctx, managerID, err)
	}
	s.dropCached(managerID, creds.ParkID)
	return nil
}

func (s *service) ListFleets(ctx context.Context, managerID uuid.UUID) ([]fleet.Park, error) {
	creds, err := s.resolve(ctx, managerID)
	if err != nil {
		return nil, err
	}
	parks, err := s.upstream.GetFleetList(ctx, creds)
	if err != nil {
		return nil, s.guard(ctx, managerID, err)
	}
	return parks, nil
}

func (s *service) dropCached(managerID uuid.UUID, parkID string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(cache.Key{ManagerID: managerID.String(), ParkID: parkID})
}
