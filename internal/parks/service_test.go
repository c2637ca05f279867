package parks

import (
	"context"
	"errors"
	"testing"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/google/uuid"
)

type stubParkRepo struct {
	parks map[uuid.UUID]*models.FleetPark

	created *models.FleetPark
	deleted []uuid.UUID
}

func newStubParkRepo(parks ...*models.FleetPark) *stubParkRepo {
	repo := &stubParkRepo{parks: make(map[uuid.UUID]*models.FleetPark)}
	for _, park := range parks {
		repo.parks[park.ID] = park
	}
	return repo
}

func (s *stubParkRepo) FindByID(_ context.Context, id uuid.UUID) (*models.FleetPark, error) {
	return s.parks[id], nil
}

func (s *stubParkRepo) FindDefault(context.Context) (*models.FleetPark, error) {
	for _, park := range s.parks {
		if park.IsDefault {
			return park, nil
		}
	}
	return nil, nil
}

func (s *stubParkRepo) FindByParkAndClient(_ context.Context, parkID, clientID string) (*models.FleetPark, error) {
	for _, park := range s.parks {
		if park.ParkID == parkID && park.ClientID == clientID {
			return park, nil
		}
	}
	return nil, nil
}

func (s *stubParkRepo) Create(_ context.Context, park *models.FleetPark) error {
	park.ID = uuid.New()
	s.parks[park.ID] = park
	s.created = park
	return nil
}

func (s *stubParkRepo) Update(_ context.Context, park *models.FleetPark) error {
	s.parks[park.ID] = park
	return nil
}

func (s *stubParkRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.parks, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubManagerStore struct {
	managers map[uuid.UUID]*models.Manager
	refCount int64

	cleared []uuid.UUID
}

func newStubManagerStore(managers ...*models.Manager) *stubManagerStore {
	store := &stubManagerStore{managers: make(map[uuid.UUID]*models.Manager)}
	for _, manager := range managers {
		store.managers[manager.ID] = manager
	}
	return store
}

func (s *stubManagerStore) FindByID(_ context.Context, id uuid.UUID) (*models.Manager, error) {
	return s.managers[id], nil
}

func (s *stubManagerStore) Update(_ context.Context, manager *models.Manager) error {
	s.managers[manager.ID] = manager
	return nil
}

func (s *stubManagerStore) ClearCredentials(_ context.Context, managerID uuid.UUID) error {
	s.cleared = append(s.cleared, managerID)
	if manager, ok := s.managers[managerID]; ok {
		manager.FleetParkID = nil
		manager.LegacyAPIKey = nil
		manager.LegacyParkID = nil
		manager.LegacyClientID = nil
	}
	return nil
}

func (s *stubManagerStore) CountByFleetParkID(context.Context, uuid.UUID) (int64, error) {
	return s.refCount, nil
}

type stubCipher struct {
	decryptErr error
}

func (s stubCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (s stubCipher) Decrypt(envelope string) (string, error) {
	if s.decryptErr != nil {
		return "", s.decryptErr
	}
	return envelope[len("enc:"):], nil
}

type stubValidator struct {
	check fleet.CredentialCheck
	calls int
	last  fleet.Credentials
}

func (s *stubValidator) ValidateCredentials(_ context.Context, creds fleet.Credentials) fleet.CredentialCheck {
	s.calls++
	s.last = creds
	return s.check
}

func newTestService(t *testing.T, repo *stubParkRepo, store *stubManagerStore, cipher secretCipher, validator *stubValidator, defaults config.FleetConfig) Service {
	t.Helper()
	svc, err := NewService(repo, store, cipher, validator, defaults, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestResolvePreferredParkReference(t *testing.T) {
	park := &models.FleetPark{
		ID:              uuid.New(),
		ParkID:          "park-1",
		ClientID:        "client-1",
		APIKeyEncrypted: "enc:key-1",
	}
	manager := &models.Manager{ID: uuid.New(), FleetParkID: &park.ID}
	svc := newTestService(t, newStubParkRepo(park), newStubManagerStore(manager), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds == nil {
		t.Fatal("expected credentials")
	}
	if creds.APIKey != "key-1" || creds.ParkID != "park-1" || creds.ClientID != "client-1" {
		t.Fatalf("unexpected bundle %+v", creds)
	}
}

func TestResolveDecryptFailureReturnsNil(t *testing.T) {
	park := &models.FleetPark{ID: uuid.New(), ParkID: "park-1", APIKeyEncrypted: "enc:key-1"}
	manager := &models.Manager{ID: uuid.New(), FleetParkID: &park.ID}
	cipher := stubCipher{decryptErr: errors.New("integrity check failed")}
	svc := newTestService(t, newStubParkRepo(park), newStubManagerStore(manager), cipher, &stubValidator{}, config.FleetConfig{})

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("decrypt failure must not surface as error, got %v", err)
	}
	if creds != nil {
		t.Fatal("expected nil credentials on decrypt failure")
	}
}

func TestResolveLegacyFallback(t *testing.T) {
	key, parkID, clientID := "legacy-key", "legacy-park", "legacy-client"
	manager := &models.Manager{
		ID:             uuid.New(),
		LegacyAPIKey:   &key,
		LegacyParkID:   &parkID,
		LegacyClientID: &clientID,
	}
	svc := newTestService(t, newStubParkRepo(), newStubManagerStore(manager), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds == nil || creds.APIKey != key || creds.ParkID != parkID || creds.ClientID != clientID {
		t.Fatalf("expected legacy bundle, got %+v", creds)
	}
}

func TestResolveNothingConfigured(t *testing.T) {
	manager := &models.Manager{ID: uuid.New()}
	svc := newTestService(t, newStubParkRepo(), newStubManagerStore(manager), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds != nil {
		t.Fatalf("expected nil, got %+v", creds)
	}
}

func TestResolveManagerNotFound(t *testing.T) {
	svc := newTestService(t, newStubParkRepo(), newStubManagerStore(), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	_, err := svc.Resolve(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveMaterializesDefaultPark(t *testing.T) {
	manager := &models.Manager{ID: uuid.New()}
	repo := newStubParkRepo()
	store := newStubManagerStore(manager)
	validator := &stubValidator{check: fleet.CredentialCheck{OK: true}}
	defaults := config.FleetConfig{
		DefaultParkID:   "default-park",
		DefaultClientID: "default-client",
		DefaultAPIKey:   "default-key",
	}
	svc := newTestService(t, repo, store, stubCipher{}, validator, defaults)

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds == nil || creds.APIKey != "default-key" {
		t.Fatalf("expected default bundle, got %+v", creds)
	}
	if validator.calls != 1 {
		t.Fatalf("expected live validation on attach, got %d calls", validator.calls)
	}
	if repo.created == nil || !repo.created.IsDefault {
		t.Fatal("expected a default park row to be materialized")
	}
	if repo.created.APIKeyEncrypted != "enc:default-key" {
		t.Fatal("default key must be stored encrypted")
	}
	if manager.FleetParkID == nil || *manager.FleetParkID != repo.created.ID {
		t.Fatal("manager must reference the materialized row")
	}

	// a second manager attaching re-validates but reuses the singleton row
	other := &models.Manager{ID: uuid.New()}
	store.managers[other.ID] = other
	if _, err := svc.Resolve(context.Background(), other.ID); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if validator.calls != 2 {
		t.Fatalf("expected re-validation per attachment, got %d calls", validator.calls)
	}
	if len(repo.parks) != 1 {
		t.Fatalf("expected singleton default row, got %d", len(repo.parks))
	}
}

func TestResolveDefaultParkRejectedByUpstream(t *testing.T) {
	manager := &models.Manager{ID: uuid.New()}
	repo := newStubParkRepo()
	validator := &stubValidator{check: fleet.CredentialCheck{OK: false, StatusCode: 403, Message: "denied"}}
	defaults := config.FleetConfig{
		DefaultParkID:   "default-park",
		DefaultClientID: "default-client",
		DefaultAPIKey:   "default-key",
	}
	svc := newTestService(t, repo, newStubManagerStore(manager), stubCipher{}, validator, defaults)

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds != nil {
		t.Fatal("rejected default bundle must resolve to nil")
	}
	if repo.created != nil {
		t.Fatal("rejected bundle must not be persisted")
	}
}

func TestInvalidateCredentialsThenResolveNil(t *testing.T) {
	park := &models.FleetPark{ID: uuid.New(), ParkID: "park-1", APIKeyEncrypted: "enc:key-1"}
	key, parkID, clientID := "k", "p", "c"
	manager := &models.Manager{
		ID:             uuid.New(),
		FleetParkID:    &park.ID,
		LegacyAPIKey:   &key,
		LegacyParkID:   &parkID,
		LegacyClientID: &clientID,
	}
	store := newStubManagerStore(manager)
	svc := newTestService(t, newStubParkRepo(park), store, stubCipher{}, &stubValidator{}, config.FleetConfig{})

	if err := svc.InvalidateCredentials(context.Background(), manager.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if len(store.cleared) != 1 || store.cleared[0] != manager.ID {
		t.Fatal("expected credentials cleared for the manager")
	}

	creds, err := svc.Resolve(context.Background(), manager.ID)
	if err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if creds != nil {
		t.Fatalf("expected nil after invalidation, got %+v", creds)
	}
}

func TestSubmitParkValidatesAndEncrypts(t *testing.T) {
	manager := &models.Manager{ID: uuid.New()}
	legacy := "old"
	manager.LegacyAPIKey, manager.LegacyParkID, manager.LegacyClientID = &legacy, &legacy, &legacy
	repo := newStubParkRepo()
	store := newStubManagerStore(manager)
	validator := &stubValidator{check: fleet.CredentialCheck{OK: true}}
	svc := newTestService(t, repo, store, stubCipher{}, validator, config.FleetConfig{})

	park, err := svc.SubmitPark(context.Background(), manager.ID, SubmitParkInput{
		APIKey:   "key-9",
		ParkID:   "park-9",
		ClientID: "client-9",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if validator.last.APIKey != "key-9" {
		t.Fatal("expected live validation with the submitted bundle")
	}
	if park.APIKeyEncrypted != "enc:key-9" {
		t.Fatal("key must be stored encrypted")
	}
	if park.ValidatedAt == nil {
		t.Fatal("expected validation timestamp")
	}
	if manager.FleetParkID == nil || *manager.FleetParkID != park.ID {
		t.Fatal("manager must reference the new park")
	}
	if manager.HasLegacyCredentials() {
		t.Fatal("legacy fields must be superseded")
	}
}

func TestSubmitParkUpstreamRejection(t *testing.T) {
	manager := &models.Manager{ID: uuid.New()}
	repo := newStubParkRepo()
	validator := &stubValidator{check: fleet.CredentialCheck{OK: false, StatusCode: 401, Message: "bad key"}}
	svc := newTestService(t, repo, newStubManagerStore(manager), stubCipher{}, validator, config.FleetConfig{})

	_, err := svc.SubmitPark(context.Background(), manager.ID, SubmitParkInput{
		APIKey:   "key-9",
		ParkID:   "park-9",
		ClientID: "client-9",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("rejected bundle must not be persisted")
	}
}

func TestSubmitParkMissingFields(t *testing.T) {
	svc := newTestService(t, newStubParkRepo(), newStubManagerStore(), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	_, err := svc.SubmitPark(context.Background(), uuid.New(), SubmitParkInput{APIKey: "only-key"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitParkReusesSharedRow(t *testing.T) {
	existing := &models.FleetPark{
		ID:              uuid.New(),
		ParkID:          "park-9",
		ClientID:        "client-9",
		APIKeyEncrypted: "enc:key-9",
	}
	manager := &models.Manager{ID: uuid.New()}
	repo := newStubParkRepo(existing)
	validator := &stubValidator{check: fleet.CredentialCheck{OK: true}}
	svc := newTestService(t, repo, newStubManagerStore(manager), stubCipher{}, validator, config.FleetConfig{})

	park, err := svc.SubmitPark(context.Background(), manager.ID, SubmitParkInput{
		APIKey:   "key-9",
		ParkID:   "park-9",
		ClientID: "client-9",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if park.ID != existing.ID {
		t.Fatal("expected existing shared row to be reused")
	}
	if repo.created != nil {
		t.Fatal("no new row expected")
	}
}

func TestDetachParkDeletesOrphanedRow(t *testing.T) {
	park := &models.FleetPark{ID: uuid.New(), ParkID: "park-1", APIKeyEncrypted: "enc:k"}
	manager := &models.Manager{ID: uuid.New(), FleetParkID: &park.ID}
	repo := newStubParkRepo(park)
	store := newStubManagerStore(manager)
	svc := newTestService(t, repo, store, stubCipher{}, &stubValidator{}, config.FleetConfig{})

	if err := svc.DetachPark(context.Background(), manager.ID); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != park.ID {
		t.Fatal("orphaned park row must be deleted")
	}
}

func TestDetachParkKeepsSharedRow(t *testing.T) {
	park := &models.FleetPark{ID: uuid.New(), ParkID: "park-1", APIKeyEncrypted: "enc:k"}
	manager := &models.Manager{ID: uuid.New(), FleetParkID: &park.ID}
	repo := newStubParkRepo(park)
	store := newStubManagerStore(manager)
	store.refCount = 1
	svc := newTestService(t, repo, store, stubCipher{}, &stubValidator{}, config.FleetConfig{})

	if err := svc.DetachPark(context.Background(), manager.ID); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("row still referenced elsewhere must survive")
	}
}

func TestDetachParkDefaultRowSurvives(t *testing.T) {
	park := &models.FleetPark{ID: uuid.New(), ParkID: "park-1", IsDefault: true, APIKeyEncrypted: "enc:k"}
	manager := &models.Manager{ID: uuid.New(), FleetParkID: &park.ID}
	repo := newStubParkRepo(park)
	svc := newTestService(t, repo, newStubManagerStore(manager), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	if err := svc.DetachPark(context.Background(), manager.ID); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("default row must never be deleted")
	}
}

func TestDetachParkWithoutReference(t *testing.T) {
	manager := &models.Manager{ID: uuid.New()}
	svc := newTestService(t, newStubParkRepo(), newStubManagerStore(manager), stubCipher{}, &stubValidator{}, config.FleetConfig{})

	err := svc.DetachPark(context.Background(), manager.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
