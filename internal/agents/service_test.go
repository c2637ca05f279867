package agents

import (
	"context"
	"testing"

	"github.com/fleetdesk/fleetdesk-backend/pkg/agentcheck"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/google/uuid"
)

type stubAgentRepo struct {
	agents map[uuid.UUID]*models.Agent

	created  int
	updated  int
	detached []int64
}

func newStubAgentRepo(agents ...*models.Agent) *stubAgentRepo {
	repo := &stubAgentRepo{agents: make(map[uuid.UUID]*models.Agent)}
	for _, agent := range agents {
		repo.agents[agent.ID] = agent
	}
	return repo
}

func (s *stubAgentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Agent, error) {
	return s.agents[id], nil
}

func (s *stubAgentRepo) FindByPhone(_ context.Context, phone string) (*models.Agent, error) {
	for _, agent := range s.agents {
		if agent.Phone == phone {
			return agent, nil
		}
	}
	return nil, nil
}

func (s *stubAgentRepo) FindByExternalID(_ context.Context, externalID string) (*models.Agent, error) {
	for _, agent := range s.agents {
		if agent.ExternalID != nil && *agent.ExternalID == externalID {
			return agent, nil
		}
	}
	return nil, nil
}

func (s *stubAgentRepo) FindByTelegramID(_ context.Context, telegramID int64) (*models.Agent, error) {
	for _, agent := range s.agents {
		if agent.TelegramID != nil && *agent.TelegramID == telegramID {
			return agent, nil
		}
	}
	return nil, nil
}

func (s *stubAgentRepo) Create(_ context.Context, agent *models.Agent) error {
	agent.ID = uuid.New()
	s.agents[agent.ID] = agent
	s.created++
	return nil
}

func (s *stubAgentRepo) Update(_ context.Context, agent *models.Agent) error {
	s.agents[agent.ID] = agent
	s.updated++
	return nil
}

func (s *stubAgentRepo) DetachTelegramID(_ context.Context, telegramID int64, keep uuid.UUID) error {
	s.detached = append(s.detached, telegramID)
	for _, agent := range s.agents {
		if agent.ID != keep && agent.TelegramID != nil && *agent.TelegramID == telegramID {
			agent.TelegramID = nil
		}
	}
	return nil
}

type stubChecker struct {
	result *agentcheck.Result
	err    error
	calls  int
	phone  string
}

func (s *stubChecker) Check(_ context.Context, phone string) (*agentcheck.Result, error) {
	s.calls++
	s.phone = phone
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestLinkCreatesAgentFromExternalVerdict(t *testing.T) {
	repo := newStubAgentRepo()
	checker := &stubChecker{result: &agentcheck.Result{Found: true, IsActive: true, ExternalID: "ext-1"}}
	svc, err := NewService(repo, checker, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	agent, err := svc.Link(context.Background(), "89991234567", Identity{TelegramID: 42})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if repo.created != 1 {
		t.Fatalf("expected exactly one agent created, got %d", repo.created)
	}
	if agent.Phone != "+79991234567" {
		t.Fatalf("expected normalized phone, got %q", agent.Phone)
	}
	if agent.ExternalID == nil || *agent.ExternalID != "ext-1" {
		t.Fatalf("expected external id recorded, got %v", agent.ExternalID)
	}
	if !agent.IsActive {
		t.Fatal("expected agent active")
	}
	if agent.TelegramID == nil || *agent.TelegramID != 42 {
		t.Fatal("expected telegram identity attached")
	}
	if checker.phone != "+79991234567" {
		t.Fatalf("checker must receive the normalized phone, got %q", checker.phone)
	}
}

func TestLinkExistingActiveAgentSkipsChecker(t *testing.T) {
	existing := &models.Agent{ID: uuid.New(), Phone: "+79991234567", IsActive: true}
	repo := newStubAgentRepo(existing)
	checker := &stubChecker{}
	svc, _ := NewService(repo, checker, nil)

	agent, err := svc.Link(context.Background(), "+79991234567", Identity{TelegramID: 42})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if checker.calls != 0 {
		t.Fatal("active local agent must not trigger the external check")
	}
	if agent.ID != existing.ID {
		t.Fatal("expected existing row back")
	}
	if repo.created != 0 {
		t.Fatal("no create expected")
	}
}

func TestLinkNotFoundExternally(t *testing.T) {
	repo := newStubAgentRepo()
	checker := &stubChecker{result: &agentcheck.Result{Found: false, Message: "Агент не найден"}}
	svc, _ := NewService(repo, checker, nil)

	_, err := svc.Link(context.Background(), "89991234567", Identity{TelegramID: 42})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if typed.Message() != "Агент не найден" {
		t.Fatalf("external message must propagate verbatim, got %q", typed.Message())
	}
	if repo.created != 0 || repo.updated != 0 {
		t.Fatal("no row may be touched on rejection")
	}
}

func TestLinkInactiveVerdictUsesDefaultMessage(t *testing.T) {
	repo := newStubAgentRepo()
	checker := &stubChecker{result: &agentcheck.Result{Found: true, IsActive: false}}
	svc, _ := NewService(repo, checker, nil)

	_, err := svc.Link(context.Background(), "89991234567", Identity{TelegramID: 42})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if typed.Message() == "" {
		t.Fatal("expected a default message")
	}
}

func TestLinkWithoutCheckerConfigured(t *testing.T) {
	repo := newStubAgentRepo()
	svc, _ := NewService(repo, nil, nil)

	_, err := svc.Link(context.Background(), "89991234567", Identity{TelegramID: 42})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLinkUpsertPrefersExternalID(t *testing.T) {
	extID := "ext-1"
	existing := &models.Agent{
		ID:         uuid.New(),
		Phone:      "+79990000000",
		ExternalID: &extID,
		IsActive:   false,
	}
	repo := newStubAgentRepo(existing)
	checker := &stubChecker{result: &agentcheck.Result{Found: true, IsActive: true, ExternalID: "ext-1"}}
	svc, _ := NewService(repo, checker, nil)

	agent, err := svc.Link(context.Background(), "89991234567", Identity{TelegramID: 42})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if agent.ID != existing.ID {
		t.Fatal("expected external-id match to win")
	}
	if agent.Phone != "+79991234567" {
		t.Fatal("phone must be refreshed on re-link")
	}
	if !agent.IsActive {
		t.Fatal("activity must follow the external verdict")
	}
	if repo.created != 0 {
		t.Fatal("no create expected")
	}
}

func TestLinkLastWriterWinsReattachment(t *testing.T) {
	tid := int64(42)
	previous := &models.Agent{ID: uuid.New(), Phone: "+79990000000", IsActive: true, TelegramID: &tid}
	target := &models.Agent{ID: uuid.New(), Phone: "+79991234567", IsActive: true}
	repo := newStubAgentRepo(previous, target)
	svc, _ := NewService(repo, &stubChecker{}, nil)

	agent, err := svc.Link(context.Background(), "+79991234567", Identity{TelegramID: 42})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if agent.ID != target.ID {
		t.Fatal("expected phone-matched agent")
	}
	if agent.TelegramID == nil || *agent.TelegramID != 42 {
		t.Fatal("expected identity attached to target")
	}
	if previous.TelegramID != nil {
		t.Fatal("prior attachment must be released")
	}
}

func TestLinkRejectsBadPhone(t *testing.T) {
	svc, _ := NewService(newStubAgentRepo(), &stubChecker{}, nil)

	_, err := svc.Link(context.Background(), "garbage", Identity{TelegramID: 42})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetByTelegramID(t *testing.T) {
	tid := int64(42)
	existing := &models.Agent{ID: uuid.New(), Phone: "+79991234567", TelegramID: &tid}
	svc, _ := NewService(newStubAgentRepo(existing), nil, nil)

	agent, err := svc.GetByTelegramID(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if agent.ID != existing.ID {
		t.Fatal("expected attached agent")
	}

	_, err = svc.GetByTelegramID(context.Background(), 99)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
