package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sparefinder-backend/internal/analyses"
	"sparefinder-backend/internal/credits"
	"sparefinder-backend/internal/shared/config"
	"sparefinder-backend/internal/shared/health"
	"sparefinder-backend/internal/shared/metrics"
	"sparefinder-backend/internal/shared/server/middleware"
	"sparefinder-backend/internal/shared/server/respond"
	"sparefinder-backend/internal/usage"
	"sparefinder-backend/internal/users"
)

// RouterDeps carries the handlers registered on the API router.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Health          *health.Service
	RateLimiter     *middleware.RateLimiter
	UserHandler     *users.Handler
	CreditHandler   *credits.Handler
	UsageHandler    *usage.Handler
	AnalysisHandler *analyses.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Verifier, deps.Config.IsDevLike()),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    middleware.DefaultRateLimitRules(),
			GroupFor: middleware.AnalysisGroupFor,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status := deps.Health.Check(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.CreditHandler != nil {
		deps.CreditHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.Config.IsDevLike() && deps.CreditHandler != nil {
		dev := api.Group("/dev")
		deps.CreditHandler.RegisterDevRoutes(dev)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
