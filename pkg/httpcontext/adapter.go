// Package httpcontext bridges fasthttp handlers to stdlib contexts: each
// request gets a deadline, a request id and its client metadata attached.
package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/learnstack/backend/pkg/logger"
)

// Key is a context value key for request metadata.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
)

const requestIDHeader = "X-Request-ID"

// Adapter derives per-request contexts with a fixed timeout.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach builds the request-scoped context. The request id is taken from the
// incoming header when present, minted otherwise, and always echoed back on
// the response.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	id := requestID(ctx)
	reqCtx = logger.ContextWithRequestID(reqCtx, id)
	ctx.Response.Header.Set(requestIDHeader, id)

	if addr := ctx.RemoteAddr(); addr != nil {
		reqCtx = context.WithValue(reqCtx, KeyRemoteAddr, addr.String())
	}
	if agent := string(ctx.Request.Header.UserAgent()); agent != "" {
		reqCtx = context.WithValue(reqCtx, KeyUserAgent, agent)
	}
	return reqCtx, cancel
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if ctx != nil {
		if id := strings.TrimSpace(string(ctx.Request.Header.Peek(requestIDHeader))); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
