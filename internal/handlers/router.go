package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"onboarding-api/internal/middleware"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Roles        *RoleHandler
	Repositories *RepositoryHandler
	Onboarding   *OnboardingHandler
	Employees    *EmployeeHandler
	// EmailWorker is nil when invitations are sent inline.
	EmailWorker *EmailWorkerHandler
}

// RouterOptions controls authentication and CORS.
type RouterOptions struct {
	// AdminAuth guards the admin routes. Nil leaves them open.
	AdminAuth gin.HandlerFunc
	// UserAuth guards routes where callers act on their own identity. Nil
	// leaves them open.
	UserAuth gin.HandlerFunc
	// WorkerAuth guards the Cloud Tasks worker.
	WorkerAuth     []gin.HandlerFunc
	AllowedOrigins []string
}

// NewRouter builds the gin engine with logging, CORS and all routes.
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	user := router.Group("/")
	if opts.UserAuth != nil {
		user.Use(opts.UserAuth)
	}
	user.POST("/assign-role", h.Roles.AssignRole)
	user.POST("/employee-signup", h.Employees.Signup)

	router.GET("/employee-onboarding/:token", h.Employees.ResolveInvitation)

	admin := router.Group("/")
	if opts.AdminAuth != nil {
		admin.Use(opts.AdminAuth)
	}
	admin.POST("/repositories", h.Repositories.Create)
	admin.GET("/repositories/:adminId", h.Repositories.List)
	admin.DELETE("/repositories/:adminId/:repoId", h.Repositories.Delete)

	admin.POST("/onboarding-sessions", h.Onboarding.Create)
	admin.GET("/onboarding-sessions/:adminId", h.Onboarding.List)
	admin.GET("/onboarding-sessions/:adminId/:sessionId", h.Onboarding.Get)
	admin.PUT("/onboarding-sessions/:adminId/:sessionId/progress", h.Onboarding.UpdateProgress)
	admin.DELETE("/onboarding-sessions/:adminId/:sessionId", h.Onboarding.Delete)

	if h.EmailWorker != nil {
		worker := router.Group("/", opts.WorkerAuth...)
		worker.POST("/process-email", h.EmailWorker.ProcessEmail)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"},
		ExposeHeaders: []string{"X-Trace-ID"},
	}

	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
