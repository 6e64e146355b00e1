package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/learnstack/backend/api/handler"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Learning *apiHandler.LearningHandler
	Admin    *apiHandler.AdminHandler
	Health   *apiHandler.HealthHandler
}

// New wires the route table. Session validation is not attached here: the
// gatekeeper wraps the whole router and classifies paths by prefix, so the
// protected routes below stay free of per-route middleware. Admin routes
// carry their own bearer-token guard.
func New(handlers Handlers, adminGuard func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Public auth routes
	r.POST("/api/v1/auth/signin", handlers.Auth.SignIn)
	r.POST("/api/v1/auth/cohort", handlers.Auth.SelectCohort)
	r.POST("/api/v1/auth/logout", handlers.Auth.Logout)
	r.POST("/api/v1/auth/signup", handlers.Auth.SignUp)

	// Protected routes (validated by the gatekeeper)
	r.GET("/api/v1/content/{id}", handlers.Learning.GetContent)
	r.POST("/api/v1/attempts", handlers.Learning.SubmitAttempt)
	r.POST("/api/v1/assignments/{id}/submission", handlers.Learning.SubmitAssignment)
	r.POST("/api/v1/progress", handlers.Learning.UpdateProgress)

	// Admin routes
	r.POST("/api/v1/admin/users/{id}/deactivate", adminGuard(handlers.Admin.DeactivateUser))
	r.POST("/api/v1/admin/mappings/deactivate", adminGuard(handlers.Admin.DeactivateMapping))
	r.POST("/api/v1/admin/cache/evict", adminGuard(handlers.Admin.EvictCache))

	return r
}
