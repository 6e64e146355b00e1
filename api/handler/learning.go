package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/learnstack/backend/api/transport"
	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/middleware"
	"github.com/learnstack/backend/pkg/httpcontext"
	learningUC "github.com/learnstack/backend/usecase/learning"
)

// LearningHandler serves the protected endpoints. Content, assignment and
// progress data live in external services; these handlers record the learner
// actions that keep the session's activity fresh and acknowledge the request
// under the validated identity.
type LearningHandler struct {
	baseHandler
	uc *learningUC.UseCase
}

func NewLearningHandler(uc *learningUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *LearningHandler {
	return &LearningHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Deliver a content item
// @Tags learning
// @Router /api/v1/content/{id} [get]
func (h *LearningHandler) GetContent(ctx *fasthttp.RequestCtx) {
	contentID, _ := ctx.UserValue("id").(string)
	h.record(ctx, learningUC.ActionContentView, contentID, nil)
}

// @Summary Submit a concept attempt
// @Tags learning
// @Router /api/v1/attempts [post]
func (h *LearningHandler) SubmitAttempt(ctx *fasthttp.RequestCtx) {
	var req transport.AttemptRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ConceptID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}
	h.record(ctx, learningUC.ActionAttempt, req.ConceptID, nil)
}

// @Summary Submit an assignment
// @Tags learning
// @Router /api/v1/assignments/{id}/submission [post]
func (h *LearningHandler) SubmitAssignment(ctx *fasthttp.RequestCtx) {
	assignmentID, _ := ctx.UserValue("id").(string)
	h.record(ctx, learningUC.ActionSubmission, assignmentID, nil)
}

// @Summary Update completion progress
// @Tags learning
// @Router /api/v1/progress [post]
func (h *LearningHandler) UpdateProgress(ctx *fasthttp.RequestCtx) {
	var req transport.ProgressUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ConceptID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}
	h.record(ctx, learningUC.ActionProgressUpdate, req.ConceptID, map[string]bool{"completed": req.Completed})
}

func (h *LearningHandler) record(ctx *fasthttp.RequestCtx, kind, subjectID string, extra interface{}) {
	userID, cohortID, sessionID := middleware.ValidatedIdentity(ctx)
	identity := learningUC.Identity{UserID: userID, CohortID: cohortID, SessionID: sessionID}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	action, err := h.uc.RecordAction(stdCtx, identity, kind, subjectID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	payload := map[string]interface{}{
		"user_id":   userID,
		"cohort_id": cohortID,
		"action":    action,
	}
	if extra != nil {
		payload["details"] = extra
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}
