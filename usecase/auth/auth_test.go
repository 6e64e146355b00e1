package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/activity"
	"github.com/learnstack/backend/internal/cache"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/internal/engine"
	"github.com/learnstack/backend/internal/snapshot"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return domain.ErrUserExists
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUsers) SetStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.Status = status
	}
	return nil
}

type memCohorts struct {
	cohorts map[string]*domain.Cohort
}

func (m *memCohorts) GetByID(_ context.Context, id string) (*domain.Cohort, error) {
	cohort, ok := m.cohorts[id]
	if !ok {
		return nil, domain.ErrCohortNotFound
	}
	copied := *cohort
	return &copied, nil
}

type memMappings struct {
	mappings map[string]*domain.Mapping
}

func mappingID(userID, cohortID string) string { return userID + ":" + cohortID }

func (m *memMappings) Get(_ context.Context, userID, cohortID string) (*domain.Mapping, error) {
	mapping, ok := m.mappings[mappingID(userID, cohortID)]
	if !ok {
		return nil, domain.ErrMappingNotFound
	}
	copied := *mapping
	return &copied, nil
}

func (m *memMappings) SetStatus(_ context.Context, userID, cohortID, status string) error {
	if mapping, ok := m.mappings[mappingID(userID, cohortID)]; ok {
		mapping.Status = status
	}
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func (m *memSessions) Create(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memSessions) Close(_ context.Context, id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok && session.EndedAt == nil {
		session.EndedAt = &endedAt
	}
	return nil
}

func (m *memSessions) FindLiveByUser(_ context.Context, userID, cohortID string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []domain.Session
	for _, session := range m.sessions {
		if session.UserID != userID || session.EndedAt != nil {
			continue
		}
		if cohortID != "" && session.CohortID != cohortID {
			continue
		}
		live = append(live, *session)
	}
	return live, nil
}

func (m *memSessions) isClosed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	return ok && session.EndedAt != nil
}

type memActions struct{}

func (memActions) InsertBatch(context.Context, []domain.Action) error { return nil }

func (memActions) LatestEndTimes(context.Context, string, int) ([]time.Time, error) {
	return nil, nil
}

type memRegistry struct {
	mu      sync.Mutex
	entries map[string]*domain.RegistryEntry
}

func (m *memRegistry) Get(_ context.Context, userID string) (*domain.RegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (m *memRegistry) Replace(_ context.Context, entry *domain.RegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.entries[entry.UserID] = &copied
	return nil
}

func (m *memRegistry) Remove(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

type authEnv struct {
	uc       *UseCase
	users    *memUsers
	cohorts  *memCohorts
	mappings *memMappings
	sessions *memSessions
	registry *memRegistry
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	env := &authEnv{
		users:    &memUsers{users: make(map[string]*domain.User)},
		cohorts:  &memCohorts{cohorts: make(map[string]*domain.Cohort)},
		mappings: &memMappings{mappings: make(map[string]*domain.Mapping)},
		sessions: &memSessions{sessions: make(map[string]*domain.Session)},
		registry: &memRegistry{entries: make(map[string]*domain.RegistryEntry)},
	}
	env.users.users["u1"] = &domain.User{ID: "u1", Status: domain.UserStatusActive}
	env.cohorts.cohorts["c1"] = &domain.Cohort{ID: "c1"}
	env.mappings.mappings[mappingID("u1", "c1")] = &domain.Mapping{
		UserID: "u1", CohortID: "c1", Status: domain.MappingStatusActive,
	}

	memory := cache.NewMemoryStore()
	loader := snapshot.NewLoader(env.users, env.cohorts, env.mappings, memory, snapshot.TTLs{}, nil)
	monitor := activity.NewMonitor(env.sessions, memActions{}, memory, activity.Config{}, nil)
	devices := device.NewService(true, env.registry, env.sessions, nil)
	eng := engine.New(loader, monitor, devices, env.sessions, memory, 0, nil)

	env.uc = New(env.users, env.cohorts, env.mappings, env.sessions, devices, eng, nil)
	return env
}

func TestSignInOpensSessionAndRegistersDevice(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	result, err := env.uc.SignIn(ctx, "u1", "", "fp1")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if result.Session == nil || result.Session.ID == "" {
		t.Fatalf("expected a session, got %+v", result)
	}
	if result.Terminated != 0 {
		t.Fatalf("first login should terminate nothing, got %d", result.Terminated)
	}

	entry, err := env.registry.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("registry entry missing: %v", err)
	}
	if entry.SessionID != result.Session.ID || entry.Fingerprint != "fp1" {
		t.Fatalf("registry does not match new session: %+v", entry)
	}
}

func TestSignInTerminatesPriorSessions(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	first, err := env.uc.SignIn(ctx, "u1", "", "fp1")
	if err != nil {
		t.Fatalf("first sign-in failed: %v", err)
	}
	second, err := env.uc.SignIn(ctx, "u1", "", "fp2")
	if err != nil {
		t.Fatalf("second sign-in failed: %v", err)
	}

	if second.Terminated != 1 {
		t.Fatalf("expected one terminated session, got %d", second.Terminated)
	}
	if !env.sessions.isClosed(first.Session.ID) {
		t.Fatal("prior session must be closed")
	}
	entry, _ := env.registry.Get(ctx, "u1")
	if entry.SessionID != second.Session.ID {
		t.Fatalf("registry must point at the newest session, got %+v", entry)
	}
}

func TestSignInDeactivatedUser(t *testing.T) {
	env := newAuthEnv(t)
	env.users.users["u1"].Status = domain.UserStatusDeactivated

	if _, err := env.uc.SignIn(context.Background(), "u1", "", "fp1"); !errors.Is(err, domain.ErrUserDeactivated) {
		t.Fatalf("expected ErrUserDeactivated, got %v", err)
	}
}

func TestSignInUnknownUser(t *testing.T) {
	env := newAuthEnv(t)

	if _, err := env.uc.SignIn(context.Background(), "ghost", "", "fp1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSignInEndedCohortRejected(t *testing.T) {
	env := newAuthEnv(t)
	env.cohorts.cohorts["c1"].EndDate = time.Now().Add(-time.Hour)

	if _, err := env.uc.SignIn(context.Background(), "u1", "c1", "fp1"); err == nil {
		t.Fatal("expected ended cohort to reject the login")
	}
}

func TestSelectCohortRequiresEnrollment(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.uc.SelectCohort(ctx, "u1", "unenrolled", "fp1"); !errors.Is(err, domain.ErrMappingNotFound) {
		t.Fatalf("expected ErrMappingNotFound, got %v", err)
	}

	env.mappings.mappings[mappingID("u1", "c1")].Status = domain.MappingStatusDeactivated
	if _, err := env.uc.SelectCohort(ctx, "u1", "c1", "fp1"); !errors.Is(err, domain.ErrMappingInactive) {
		t.Fatalf("expected ErrMappingInactive, got %v", err)
	}
}

func TestSelectCohortOpensScopedSession(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	result, err := env.uc.SelectCohort(ctx, "u1", "c1", "fp1")
	if err != nil {
		t.Fatalf("select cohort failed: %v", err)
	}
	if result.Session.CohortID != "c1" {
		t.Fatalf("session not bound to cohort: %+v", result.Session)
	}
}

func TestLogoutClosesSessionAndReleasesRegistry(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	result, err := env.uc.SignIn(ctx, "u1", "c1", "fp1")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	if err := env.uc.Logout(ctx, "u1", "c1", result.Session.ID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if !env.sessions.isClosed(result.Session.ID) {
		t.Fatal("logout must close the session")
	}
	if _, err := env.registry.Get(ctx, "u1"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("logout must release the registry entry, got %v", err)
	}

	// Logging out twice is harmless.
	if err := env.uc.Logout(ctx, "u1", "c1", result.Session.ID); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
}

func TestLogoutRequiresIdentity(t *testing.T) {
	env := newAuthEnv(t)

	if err := env.uc.Logout(context.Background(), "", "", ""); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestSignUpDefaults(t *testing.T) {
	env := newAuthEnv(t)

	user, err := env.uc.SignUp(context.Background(), "", "learner@example.com", "")
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a generated id")
	}
	if user.Role != "learner" || user.Status != domain.UserStatusActive {
		t.Fatalf("unexpected defaults: %+v", user)
	}
}

func TestSignUpDuplicate(t *testing.T) {
	env := newAuthEnv(t)

	if _, err := env.uc.SignUp(context.Background(), "u1", "", ""); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}
