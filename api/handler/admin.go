package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/learnstack/backend/api/transport"
	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/engine"
	"github.com/learnstack/backend/pkg/httpcontext"
	"github.com/learnstack/backend/repository"
)

// AdminHandler exposes the administrative surface: deactivations and explicit
// cache management. A deactivation is immediately followed by eviction of the
// affected identity tuples so no stale "valid" verdict survives it.
type AdminHandler struct {
	baseHandler
	users    repository.UserRepository
	mappings repository.MappingRepository
	sessions repository.SessionRepository
	engine   *engine.Engine
}

func NewAdminHandler(
	users repository.UserRepository,
	mappings repository.MappingRepository,
	sessions repository.SessionRepository,
	eng *engine.Engine,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		users:       users,
		mappings:    mappings,
		sessions:    sessions,
		engine:      eng,
	}
}

// @Summary Deactivate a user and evict their cached state
// @Tags admin
// @Router /api/v1/admin/users/{id}/deactivate [post]
func (h *AdminHandler) DeactivateUser(ctx *fasthttp.RequestCtx) {
	userID, _ := ctx.UserValue("id").(string)
	if userID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing user id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.users.SetStatus(stdCtx, userID, domain.UserStatusDeactivated); err != nil {
		h.respondError(ctx, err)
		return
	}

	closed := 0
	if live, err := h.sessions.FindLiveByUser(stdCtx, userID, ""); err == nil {
		now := time.Now()
		for _, session := range live {
			if err := h.sessions.Close(stdCtx, session.ID, now); err == nil {
				closed++
			}
			h.engine.EvictIdentity(stdCtx, userID, session.CohortID, session.ID)
		}
	}
	// Evict even when no live session was found; the snapshot may still be
	// cached from an earlier request.
	h.engine.EvictIdentity(stdCtx, userID, "", "")

	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"user_id":         userID,
		"closed_sessions": closed,
	})
}

// @Summary Deactivate a user-cohort mapping and evict its cached state
// @Tags admin
// @Router /api/v1/admin/mappings/deactivate [post]
func (h *AdminHandler) DeactivateMapping(ctx *fasthttp.RequestCtx) {
	var req transport.DeactivateMappingRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.UserID == "" || req.CohortID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.mappings.SetStatus(stdCtx, req.UserID, req.CohortID, domain.MappingStatusDeactivated); err != nil {
		h.respondError(ctx, err)
		return
	}

	if live, err := h.sessions.FindLiveByUser(stdCtx, req.UserID, req.CohortID); err == nil {
		now := time.Now()
		for _, session := range live {
			_ = h.sessions.Close(stdCtx, session.ID, now)
			h.engine.EvictIdentity(stdCtx, req.UserID, req.CohortID, session.ID)
		}
	}
	h.engine.EvictIdentity(stdCtx, req.UserID, req.CohortID, "")

	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"user_id":   req.UserID,
		"cohort_id": req.CohortID,
	})
}

// @Summary Evict all cached state for an identity tuple
// @Tags admin
// @Router /api/v1/admin/cache/evict [post]
func (h *AdminHandler) EvictCache(ctx *fasthttp.RequestCtx) {
	var req transport.CacheEvictRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.UserID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.engine.EvictIdentity(stdCtx, req.UserID, req.CohortID, req.SessionID)
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"evicted": true})
}
