package main

import (
	"context"
	"log"

	"github.com/infoescom/backend/internal/router"
	"github.com/infoescom/backend/pkg/config"
	"github.com/infoescom/backend/pkg/firebase"
	"github.com/infoescom/backend/pkg/logger"
	"github.com/infoescom/backend/pkg/mailer"
	"github.com/infoescom/backend/pkg/push"
	"github.com/infoescom/backend/pkg/storage"
	"github.com/infoescom/backend/validators"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	cfg := config.Load()
	logg := logger.New(cfg.Env)

	// Initialize database connection
	db, err := config.InitDB(cfg)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.CloseDB()

	// Initialize Firebase (push delivery)
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to initialize Firebase")
	}
	sender := push.NewFCMSender(firebaseApp.MessagingClient)

	// Mail and attachment storage
	mail := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	store, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to initialize upload storage")
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e, logg)

	// Setup routes and dependencies
	router.SetupRoutes(e, db.Database, cfg, logg, sender, mail, store)

	// Validator
	e.Validator = validators.NewValidator()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
