package routes

import (
	"time"

	"newsletter-backend/config"
	"newsletter-backend/controllers"
	"newsletter-backend/idempotency"
	"newsletter-backend/middlewares"
	"newsletter-backend/newsletter"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	DB          *gorm.DB
	Logger      *zap.Logger
	Idempotency *idempotency.Store
	Publisher   *newsletter.Publisher
	JWTSecret   []byte
	JWTTTL      time.Duration
}

// NewApp builds the fiber app with the global error handler, limits, CORS,
// rate limiting and all routes.
func NewApp(s config.ApplicationSettings, deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middlewares.ErrorHandler(deps.Logger),
		BodyLimit:             s.BodyLimitBytes,
		DisableStartupMessage: true,
	})

	allowedOrigins := s.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	if s.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.RateLimitMax,
			Expiration: s.RateLimitWindow,
		}))
	}

	Register(app, deps)
	return app
}

// Register wires all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	auth := &controllers.AuthController{DB: deps.DB, JWTSecret: deps.JWTSecret, JWTTTL: deps.JWTTTL}
	issues := &controllers.NewsletterController{DB: deps.DB, Publisher: deps.Publisher}

	app.Get("/health_check", controllers.HealthCheck)

	api := app.Group("/api")
	api.Post("/login", auth.Login)

	// Protected endpoints (JWT auth)
	admin := api.Group("/admin")
	admin.Use(middlewares.JWTAuth(deps.JWTSecret))

	// Mutating admin routes run inside the idempotency claim transaction.
	admin.Use(middlewares.Idempotency(deps.Idempotency, deps.Logger))

	admin.Post("/newsletters", issues.Publish)
	admin.Get("/newsletters/:id", issues.Get)
}
