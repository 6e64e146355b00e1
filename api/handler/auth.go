package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/learnstack/backend/api/transport"
	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/pkg/httpcontext"
	authUC "github.com/learnstack/backend/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc *authUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Sign in and open a session
// @Tags auth
// @Router /api/v1/auth/signin [post]
func (h *AuthHandler) SignIn(ctx *fasthttp.RequestCtx) {
	var req transport.SignInRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.UserID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.SignIn(stdCtx, req.UserID, req.CohortID, requestFingerprint(ctx, req.Fingerprint))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, result)
}

// @Summary Select a cohort, opening a session bound to it
// @Tags auth
// @Router /api/v1/auth/cohort [post]
func (h *AuthHandler) SelectCohort(ctx *fasthttp.RequestCtx) {
	var req transport.CohortSelectRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.UserID == "" || req.CohortID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.SelectCohort(stdCtx, req.UserID, req.CohortID, requestFingerprint(ctx, req.Fingerprint))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, result)
}

// @Summary Close the session and release its device registration
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	var req transport.LogoutRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.UserID == "" || req.SessionID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, req.UserID, req.CohortID, req.SessionID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"logged_out": true})
}

// @Summary Create an account
// @Tags auth
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) SignUp(ctx *fasthttp.RequestCtx) {
	var req transport.SignUpRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Email == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.uc.SignUp(stdCtx, req.UserID, req.Email, req.Role)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, user)
}

// requestFingerprint prefers a client-declared fingerprint (body first, then
// header) and falls back to a server-side derivation from request headers.
func requestFingerprint(ctx *fasthttp.RequestCtx, declared string) string {
	if declared == "" {
		declared = string(ctx.Request.Header.Peek("X-Device-Fingerprint"))
	}
	return device.Fingerprint(
		declared,
		string(ctx.Request.Header.UserAgent()),
		ctx.RemoteIP().String(),
		string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptLanguage)),
		string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding)),
	)
}
