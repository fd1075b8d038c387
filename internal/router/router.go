package router

import (
	"github.com/infoescom/backend/internal/handlers"
	"github.com/infoescom/backend/internal/middleware"
	"github.com/infoescom/backend/internal/notify"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/infoescom/backend/pkg/config"
	"github.com/infoescom/backend/pkg/mailer"
	"github.com/infoescom/backend/pkg/push"
	"github.com/infoescom/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, log zerolog.Logger) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, db *mongo.Database, cfg *config.Config, log zerolog.Logger, sender push.Sender, mail mailer.Mailer, store storage.Store) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// Uploaded attachments are served statically, same path as their refs.
	e.Static("/uploads", cfg.UploadDir)

	// --- Initialize repositories ---
	userRepo := repositories.NewMongoUserRepository(db)
	areaRepo := repositories.NewMongoAreaRepository(db)
	postRepo := repositories.NewMongoPostRepository(db)
	subRepo := repositories.NewMongoSubscriptionRepository(db)

	dispatcher := notify.NewDispatcher(subRepo, sender, log)
	authn := middleware.JWTAuthMiddleware(cfg.JWTSecret)

	// --- Authentication ---
	authHandler := handlers.NewAuthHandler(userRepo, mail, cfg.JWTSecret, cfg.FrontendBaseURL, log)
	authHandler.RegisterAuthRoutes(e.Group("/api/auth"))

	// --- Accounts (mixed public/authenticated, gated per route) ---
	userHandler := handlers.NewUserHandler(userRepo, areaRepo, mail, cfg.JWTSecret, cfg.FrontendBaseURL, log)
	userHandler.RegisterUserRoutes(e.Group("/api/users"), authn)

	// --- Areas ---
	areaHandler := handlers.NewAreaHandler(areaRepo)
	areaHandler.RegisterAreaRoutes(e.Group("/api/areas"), authn)

	// --- Posts ---
	postHandler := handlers.NewPostHandler(postRepo, userRepo, areaRepo, store, dispatcher, log)
	postGroup := e.Group("/api/posts", authn)
	postHandler.RegisterPostRoutes(postGroup)
	// Single-post read is public, matching the original route table.
	e.GET("/api/posts/:id", postHandler.GetPost)

	feedHandler := handlers.NewFeedHandler(postRepo, userRepo, areaRepo)
	feedHandler.RegisterFeedRoutes(postGroup)

	// --- Notifications ---
	notificationHandler := handlers.NewNotificationHandler(subRepo, userRepo, dispatcher)
	notificationHandler.RegisterNotificationRoutes(e.Group("/api/notifications", authn))

	log.Info().Msg("all routes configured")
}
