package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/handler"
	"github.com/stemsi/tutoria-backend/internal/middleware"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/response"
)

// availabilityMaxAge matches the advisory nature of the availability snapshot.
const availabilityMaxAge = 5 * time.Second

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Reservation *handler.ReservationHandler
	Class       *handler.ClassHandler
	SeatStream  *handler.SeatStreamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	reserveLimiter *middleware.ReserveRateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware(log))

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Class Group (JWT) ──────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(auth))
	{
		api.GET("/classes/:id", handlers.Class.GetClass)
		api.GET("/classes/:id/availability",
			middleware.CacheControl(availabilityMaxAge),
			handlers.Class.GetAvailability,
		)

		// Guardians book and release seats for their own learners.
		api.POST("/classes/:id/reservations",
			middleware.RequireRole(model.RoleGuardian),
			reserveLimiter.Middleware(),
			handlers.Reservation.ReserveSeat,
		)
		api.DELETE("/reservations/:id",
			middleware.RequireRole(model.RoleGuardian),
			handlers.Reservation.ReleaseSeat,
		)

		// Any role reaches the cancellation rules, which answer 403 for
		// roles that may not cancel.
		api.POST("/classes/:id/cancel", handlers.Class.CancelClass)
		api.GET("/classes/:id/roster",
			middleware.RequireRole(model.RoleAdmin, model.RoleInstructor),
			handlers.Class.Roster,
		)
	}

	// ─── 2. Admin Group (JWT + ADMIN) ──────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.POST("/classes", handlers.Class.ScheduleClass)
		adminAPI.POST("/classes/:id/learners", handlers.Class.AssignLearners)
		adminAPI.DELETE("/classes/:id", handlers.Class.PurgeClass)
	}

	// ─── 3. WebSocket Group (token query) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(auth))
	{
		ws.GET("/classes/:id/seats", handlers.SeatStream.StreamSeats)
	}

	return router
}
