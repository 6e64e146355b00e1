package middleware

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/learnstack/backend/api/transport"
	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/activity"
	"github.com/learnstack/backend/internal/cache"
	"github.com/learnstack/backend/internal/config"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/internal/engine"
	"github.com/learnstack/backend/internal/snapshot"
)

type stubUsers struct{ user *domain.User }

func (s stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, domain.ErrUserNotFound
	}
	copied := *s.user
	return &copied, nil
}

func (s stubUsers) Create(context.Context, *domain.User) error      { return nil }
func (s stubUsers) SetStatus(context.Context, string, string) error { return nil }

type stubCohorts struct{ cohort *domain.Cohort }

func (s stubCohorts) GetByID(_ context.Context, id string) (*domain.Cohort, error) {
	if s.cohort == nil || s.cohort.ID != id {
		return nil, domain.ErrCohortNotFound
	}
	copied := *s.cohort
	return &copied, nil
}

type stubMappings struct{ mapping *domain.Mapping }

func (s stubMappings) Get(_ context.Context, userID, cohortID string) (*domain.Mapping, error) {
	if s.mapping == nil || s.mapping.UserID != userID || s.mapping.CohortID != cohortID {
		return nil, domain.ErrMappingNotFound
	}
	copied := *s.mapping
	return &copied, nil
}

func (s stubMappings) SetStatus(context.Context, string, string, string) error { return nil }

type stubSessions struct{ session *domain.Session }

func (s stubSessions) Create(context.Context, *domain.Session) error { return nil }

func (s stubSessions) GetByID(_ context.Context, id string) (*domain.Session, error) {
	if s.session == nil || s.session.ID != id {
		return nil, domain.ErrSessionNotFound
	}
	copied := *s.session
	return &copied, nil
}

func (s stubSessions) Close(context.Context, string, time.Time) error { return nil }

func (s stubSessions) FindLiveByUser(context.Context, string, string) ([]domain.Session, error) {
	return nil, nil
}

type stubActions struct{}

func (stubActions) InsertBatch(context.Context, []domain.Action) error { return nil }

func (stubActions) LatestEndTimes(context.Context, string, int) ([]time.Time, error) {
	return nil, nil
}

type stubRegistry struct{ entry *domain.RegistryEntry }

func (s stubRegistry) Get(_ context.Context, userID string) (*domain.RegistryEntry, error) {
	if s.entry == nil || s.entry.UserID != userID {
		return nil, domain.ErrEntryNotFound
	}
	copied := *s.entry
	return &copied, nil
}

func (s stubRegistry) Replace(context.Context, *domain.RegistryEntry) error { return nil }
func (s stubRegistry) Remove(context.Context, string) error                 { return nil }

// newTestGatekeeper builds a gatekeeper over an engine seeded with one live
// session (u1/c1/s1, device fp1) started at the given time.
func newTestGatekeeper(sessionStart time.Time) *Gatekeeper {
	memory := cache.NewMemoryStore()
	users := stubUsers{user: &domain.User{ID: "u1", Status: domain.UserStatusActive}}
	cohorts := stubCohorts{cohort: &domain.Cohort{ID: "c1"}}
	mappings := stubMappings{mapping: &domain.Mapping{UserID: "u1", CohortID: "c1", Status: domain.MappingStatusActive}}
	sessions := stubSessions{session: &domain.Session{ID: "s1", UserID: "u1", CohortID: "c1", StartedAt: sessionStart}}
	registry := stubRegistry{entry: &domain.RegistryEntry{UserID: "u1", SessionID: "s1", Fingerprint: "fp1"}}

	loader := snapshot.NewLoader(users, cohorts, mappings, memory, snapshot.TTLs{}, nil)
	monitor := activity.NewMonitor(sessions, stubActions{}, memory, activity.Config{}, nil)
	devices := device.NewService(true, registry, sessions, nil)
	eng := engine.New(loader, monitor, devices, sessions, memory, 0, nil)

	return NewGatekeeper(eng, config.GatekeeperConfig{
		PublicPrefixes:    []string{"/api/v1/auth/"},
		ProtectedPrefixes: []string{"/api/v1/content"},
	}, nil)
}

func newRequestCtx(method, path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	return ctx
}

func setIdentityHeaders(ctx *fasthttp.RequestCtx) {
	ctx.Request.Header.Set(HeaderSessionToken, "s1")
	ctx.Request.Header.Set(HeaderUserID, "u1")
	ctx.Request.Header.Set(HeaderCohortID, "c1")
	ctx.Request.Header.Set(HeaderFingerprint, "fp1")
}

func wrapCounting(gk *Gatekeeper) (fasthttp.RequestHandler, *int) {
	calls := 0
	handler := gk.Wrap(func(ctx *fasthttp.RequestCtx) {
		calls++
		ctx.SetStatusCode(fasthttp.StatusOK)
	})
	return handler, &calls
}

func TestPublicPathBypassesValidation(t *testing.T) {
	gk := newTestGatekeeper(time.Now())
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodPost, "/api/v1/auth/signin")
	handler(ctx)

	if *calls != 1 {
		t.Fatal("public path must reach the handler without headers")
	}
}

func TestOptionsBypassesValidation(t *testing.T) {
	gk := newTestGatekeeper(time.Now())
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodOptions, "/api/v1/content/1")
	handler(ctx)

	if *calls != 1 {
		t.Fatal("preflight must pass through")
	}
}

func TestUnclassifiedPathDefaultAllow(t *testing.T) {
	gk := newTestGatekeeper(time.Now())
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/healthz")
	handler(ctx)

	if *calls != 1 {
		t.Fatal("unclassified path should pass by default")
	}
}

func TestUnclassifiedPathDenyWhenConfigured(t *testing.T) {
	gk := newTestGatekeeper(time.Now())
	gk.cfg.DenyUnclassified = true
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/healthz")
	handler(ctx)

	if *calls != 0 {
		t.Fatal("unclassified path must be blocked when deny is configured")
	}
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}
}

func TestProtectedPathWithoutIdentity(t *testing.T) {
	gk := newTestGatekeeper(time.Now())
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/api/v1/content/1")
	handler(ctx)

	if *calls != 0 {
		t.Fatal("request without identity must not reach the handler")
	}
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}

	var denial transport.Denial
	if err := json.Unmarshal(ctx.Response.Body(), &denial); err != nil {
		t.Fatalf("denial body is not valid JSON: %v", err)
	}
	if denial.ErrorCode != string(domain.CodeInvalidSession) {
		t.Fatalf("expected INVALID_SESSION, got %q", denial.ErrorCode)
	}
	if !denial.RequiresLogin || denial.IsWarning {
		t.Fatalf("unexpected denial flags: %+v", denial)
	}
	if denial.Timestamp == "" {
		t.Fatal("denial must carry a timestamp")
	}
}

func TestProtectedPathWithValidIdentity(t *testing.T) {
	gk := newTestGatekeeper(time.Now().Add(-time.Minute))
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/api/v1/content/1")
	setIdentityHeaders(ctx)
	handler(ctx)

	if *calls != 1 {
		t.Fatalf("valid request must reach the handler, status %d", ctx.Response.StatusCode())
	}

	userID, cohortID, sessionID := ValidatedIdentity(ctx)
	if userID != "u1" || cohortID != "c1" || sessionID != "s1" {
		t.Fatalf("validated identity not attached: %s/%s/%s", userID, cohortID, sessionID)
	}
}

func TestBearerTokenFallback(t *testing.T) {
	gk := newTestGatekeeper(time.Now().Add(-time.Minute))
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/api/v1/content/1")
	ctx.Request.Header.Set("Authorization", "Bearer s1")
	ctx.Request.Header.Set(HeaderUserID, "u1")
	ctx.Request.Header.Set(HeaderCohortID, "c1")
	ctx.Request.Header.Set(HeaderFingerprint, "fp1")
	handler(ctx)

	if *calls != 1 {
		t.Fatalf("bearer token must be accepted, status %d", ctx.Response.StatusCode())
	}
}

func TestWarningSurfacedInResponseHeaders(t *testing.T) {
	gk := newTestGatekeeper(time.Now().Add(-57 * time.Minute))
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/api/v1/content/1")
	setIdentityHeaders(ctx)
	handler(ctx)

	if *calls != 1 {
		t.Fatal("warning must not block the request")
	}
	if code := string(ctx.Response.Header.Peek(HeaderWarningCode)); code != string(domain.CodeInactivityWarning) {
		t.Fatalf("expected warning header, got %q", code)
	}
	if minutes := string(ctx.Response.Header.Peek(HeaderWarningMinutes)); minutes == "" {
		t.Fatal("expected minutes-remaining header")
	}
}

func TestTimedOutSessionDenied(t *testing.T) {
	gk := newTestGatekeeper(time.Now().Add(-2 * time.Hour))
	handler, calls := wrapCounting(gk)

	ctx := newRequestCtx(fasthttp.MethodGet, "/api/v1/content/1")
	setIdentityHeaders(ctx)
	handler(ctx)

	if *calls != 0 {
		t.Fatal("timed out session must be denied")
	}

	var denial transport.Denial
	if err := json.Unmarshal(ctx.Response.Body(), &denial); err != nil {
		t.Fatalf("denial body is not valid JSON: %v", err)
	}
	if denial.ErrorCode != string(domain.CodeSessionTimeout) {
		t.Fatalf("expected SESSION_TIMEOUT, got %q", denial.ErrorCode)
	}
}
