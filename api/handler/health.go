package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/learnstack/backend/api/transport"
	"github.com/learnstack/backend/internal/infrastructure/monitor"
	"github.com/learnstack/backend/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
}

func NewHealthHandler(mon *monitor.Monitor, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

type queueReport struct {
	Online bool `json:"online"`
	Depth  int  `json:"depth"`
}

type healthReport struct {
	Status      string      `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	PostgreSQL  bool        `json:"postgresql"`
	Redis       bool        `json:"redis"`
	ActionQueue queueReport `json:"action_queue"`
}

// Check reports dependency health. The process is degraded, not down, while
// the action queue absorbs writes; only lost core stores turn the status 503.
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()

	report := healthReport{
		Status:     "ok",
		Timestamp:  time.Now().UTC(),
		PostgreSQL: status.PostgreSQL,
		Redis:      status.Redis,
	}
	report.ActionQueue.Online = status.Buffer
	report.ActionQueue.Depth = status.BufferSize

	if status.PostgreSQL && status.Redis {
		h.respondSuccess(ctx, http.StatusOK, report)
		return
	}

	report.Status = "degraded"
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", report))
}
