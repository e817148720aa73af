package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/credstack/server/internal/auth"
	"github.com/credstack/server/internal/config"
	"github.com/credstack/server/internal/db"
	httphandler "github.com/credstack/server/internal/http"
	"github.com/credstack/server/internal/http/handlers"
	"github.com/credstack/server/internal/mail"
	"github.com/credstack/server/internal/repo"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	store := repo.NewStore(database)

	// Outbound mail: fire-and-forget queue, log-only when unconfigured.
	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			FromName:    cfg.MailFromName,
			FromAddress: cfg.MailFromAddress,
		})
	} else {
		sender = mail.NewLogSender(logger)
	}
	mailQueue := mail.NewQueue(sender, logger)
	mailQueue.Start(ctx)
	mailer := mail.NewTemplateMailer(mailQueue, logger)

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	signer := auth.NewTokenSigner(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	sessions := auth.NewSessionManager(store, signer, logger, cfg.RefreshTokenTTL)
	resetEngine := auth.NewResetEngine(store, hasher, hasher, mailer, logger,
		cfg.ResetCodeTTL, cfg.ResetMaxPerHour, cfg.ResetMaxAttempts)
	accounts := auth.NewAccountService(store, hasher, sessions, mailer, logger)

	sweeper := auth.NewSweeper(store, logger, cfg.CleanupInterval)
	go sweeper.Run(ctx)

	router := httphandler.NewRouter(
		handlers.NewAccountHandler(accounts, logger),
		handlers.NewResetHandler(resetEngine, logger),
		handlers.NewSessionHandler(sessions, logger),
		signer,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
