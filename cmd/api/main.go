package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"golang.org/x/crypto/bcrypt"

	"github.com/neologin/backend/internal/admin"
	"github.com/neologin/backend/internal/auth"
	"github.com/neologin/backend/internal/config"
	"github.com/neologin/backend/internal/mailer"
	"github.com/neologin/backend/internal/models"
	"github.com/neologin/backend/internal/repository"
	"github.com/neologin/backend/internal/reset"
	"github.com/neologin/backend/internal/router"
	"github.com/neologin/backend/internal/tasks"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadWithEnv(cfgPath)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := repository.Migrate(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// OTP mail delivery: insert func is set after the River client is
	// created (breaks init cycle).
	var insertMu sync.Mutex
	var insertFn reset.EnqueueOTPMailTxFunc
	enqueueOTPMail := func(ctx context.Context, tx pgx.Tx, args mailer.SendOTPEmailArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, mailer.NewSendOTPEmailWorker(mailer.New(cfg.SMTP), logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args mailer.SendOTPEmailArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth & reset
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.Auth.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	resetSvc := reset.NewService(authRepo, enqueueOTPMail)
	resetHandler := reset.NewHandler(resetSvc, logger)

	// Marketplace & administration
	accountRepo := repository.NewAccountRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)

	taskSvc := tasks.NewService(taskRepo)
	taskHandler := tasks.NewHandler(taskSvc, logger)

	adminHandler := admin.NewHandler(accountRepo, authRepo, logger)

	if err := seedAdmin(ctx, authRepo, cfg.Auth.SeedAdminPassword); err != nil {
		slog.Error("Seed admin bootstrap failed", "error", err)
		os.Exit(1)
	}

	apiRouter := router.New(authHandler, resetHandler, taskHandler, adminHandler, authSvc, accountRepo)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (delivers OTP mail)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", cfg.Server.ListenAddr)
	if err := http.ListenAndServe(cfg.Server.ListenAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// seedAdmin creates the bootstrap administrator if no account with the seed
// email exists yet.
func seedAdmin(ctx context.Context, repo *auth.Repository, password string) error {
	existing, err := repo.GetByEmail(ctx, models.SeedAdminEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if password == "" {
		password = "Admin@123"
		slog.Warn("Using default seed admin password; set SEED_ADMIN_PASSWORD in production")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	acc := &models.Account{
		ID:           uuid.New(),
		FirstName:    "System",
		LastName:     "Admin",
		DOB:          "1990-01-01",
		Gender:       "other",
		Mobile:       models.SeedAdminMobile,
		Email:        models.SeedAdminEmail,
		Username:     models.SeedAdminUsername,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := repo.Create(ctx, acc); err != nil {
		return err
	}
	slog.Info("Seed admin created", "email", models.SeedAdminEmail)
	return nil
}
