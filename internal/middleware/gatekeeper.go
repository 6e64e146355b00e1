package middleware

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/learnstack/backend/api/transport"
	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/config"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/internal/engine"
)

// Request header names carrying the session identity.
const (
	HeaderSessionToken = "X-Session-Token"
	HeaderUserID       = "X-User-ID"
	HeaderCohortID     = "X-Cohort-ID"
	HeaderFingerprint  = "X-Device-Fingerprint"
)

// Response header names carrying a soft warning.
const (
	HeaderWarningCode    = "X-Session-Warning"
	HeaderWarningMessage = "X-Session-Warning-Message"
	HeaderWarningMinutes = "X-Session-Minutes-Remaining"
)

// User value keys for validated identity, readable by downstream handlers.
const (
	CtxUserID    = "validated_user_id"
	CtxCohortID  = "validated_cohort_id"
	CtxSessionID = "validated_session_id"
)

// Gatekeeper is the per-request entry point: it classifies the route, invokes
// the validation engine for protected paths and either forwards the request
// with validated identity attached or short-circuits with a structured denial.
type Gatekeeper struct {
	engine *engine.Engine
	cfg    config.GatekeeperConfig
	logger *zap.Logger
}

func NewGatekeeper(eng *engine.Engine, cfg config.GatekeeperConfig, logger *zap.Logger) *Gatekeeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{
		engine: eng,
		cfg:    cfg,
		logger: logger,
	}
}

// Wrap returns the gatekeeping handler around next.
func (g *Gatekeeper) Wrap(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Method()) == fasthttp.MethodOptions {
			next(ctx)
			return
		}

		path := string(ctx.Path())
		switch g.classify(path) {
		case routePublic:
			next(ctx)
		case routeProtected:
			g.validate(ctx, next)
		default:
			if g.cfg.DenyUnclassified {
				g.denyRequest(ctx, domain.InvalidVerdict(domain.CodeInvalidSession, "path is not allow-listed"))
				return
			}
			next(ctx)
		}
	}
}

type routeClass int

const (
	routeUnclassified routeClass = iota
	routePublic
	routeProtected
)

func (g *Gatekeeper) classify(path string) routeClass {
	for _, prefix := range g.cfg.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return routePublic
		}
	}
	for _, prefix := range g.cfg.ProtectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return routeProtected
		}
	}
	return routeUnclassified
}

func (g *Gatekeeper) validate(ctx *fasthttp.RequestCtx, next fasthttp.RequestHandler) {
	sc := sessionContextFromRequest(ctx)

	verdict := g.engine.Validate(ctx, sc)
	if !verdict.Valid {
		g.logger.Info("request denied",
			zap.String("path", string(ctx.Path())),
			zap.String("code", string(verdict.ErrorCode)))
		g.denyRequest(ctx, verdict)
		return
	}

	if verdict.Warning {
		ctx.Response.Header.Set(HeaderWarningCode, string(verdict.ErrorCode))
		ctx.Response.Header.Set(HeaderWarningMessage, verdict.ErrorMessage)
		ctx.Response.Header.Set(HeaderWarningMinutes, strconv.Itoa(verdict.MinutesRemaining))
	}

	ctx.SetUserValue(CtxUserID, verdict.UserID)
	ctx.SetUserValue(CtxCohortID, verdict.CohortID)
	ctx.SetUserValue(CtxSessionID, verdict.SessionID)
	ctx.Request.Header.Set(HeaderUserID, verdict.UserID)
	ctx.Request.Header.Set(HeaderCohortID, verdict.CohortID)

	next(ctx)
}

func (g *Gatekeeper) denyRequest(ctx *fasthttp.RequestCtx, verdict domain.Verdict) {
	payload := transport.Denial{
		Message:       verdict.ErrorMessage,
		ErrorCode:     string(verdict.ErrorCode),
		IsWarning:     false,
		RequiresLogin: true,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}

// sessionContextFromRequest reads the opaque session token, its companion
// ids, and derives the device fingerprint from the request headers.
func sessionContextFromRequest(ctx *fasthttp.RequestCtx) engine.SessionContext {
	token := string(ctx.Request.Header.Peek(HeaderSessionToken))
	if token == "" {
		if auth := string(ctx.Request.Header.Peek("Authorization")); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}

	return engine.SessionContext{
		UserID:    string(ctx.Request.Header.Peek(HeaderUserID)),
		CohortID:  string(ctx.Request.Header.Peek(HeaderCohortID)),
		SessionID: token,
		Fingerprint: device.Fingerprint(
			string(ctx.Request.Header.Peek(HeaderFingerprint)),
			string(ctx.Request.Header.UserAgent()),
			ctx.RemoteIP().String(),
			string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptLanguage)),
			string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding)),
		),
	}
}

// ValidatedIdentity reads the identity the gatekeeper attached to the request.
func ValidatedIdentity(ctx *fasthttp.RequestCtx) (userID, cohortID, sessionID string) {
	userID, _ = ctx.UserValue(CtxUserID).(string)
	cohortID, _ = ctx.UserValue(CtxCohortID).(string)
	sessionID, _ = ctx.UserValue(CtxSessionID).(string)
	return userID, cohortID, sessionID
}
