// LunaSphere Core - marketing site and membership backend.
//
// This is the main entry point for the LunaSphere server: a small REST API
// with JWT sessions, role-based access, visitor analytics, a services
// catalog and a contact form, serving an embedded single-page front end.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lunasphere/lunasphere-core/migrations"

	"github.com/lunasphere/lunasphere-core/internal/analytics"
	"github.com/lunasphere/lunasphere-core/internal/api"
	"github.com/lunasphere/lunasphere-core/internal/auth"
	"github.com/lunasphere/lunasphere-core/internal/catalog"
	"github.com/lunasphere/lunasphere-core/internal/contact"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/database"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting LunaSphere",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Wire the auth service
	userRepo := auth.NewUserRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)

	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	issuer := auth.NewTokenIssuer(
		cfg.Security.JWT.AccessSecret,
		cfg.Security.JWT.RefreshSecret,
		cfg.AccessTokenTTL(),
		cfg.RefreshTokenTTL(),
	)
	authService := auth.NewService(userRepo, tokenRepo, issuer, log)

	// Connect the optional page-view sink
	var sink *analytics.InfluxSink
	if cfg.Analytics.InfluxDB.Enabled {
		sink, err = analytics.ConnectInflux(cfg.Analytics.InfluxDB)
		if err != nil {
			if errors.Is(err, analytics.ErrSinkDisabled) {
				sink = nil
			} else {
				return fmt.Errorf("connecting to InfluxDB: %w", err)
			}
		}
	}
	if sink != nil {
		defer func() {
			log.Info("closing InfluxDB sink")
			if closeErr := sink.Close(); closeErr != nil {
				log.Error("error closing InfluxDB sink", "error", closeErr)
			}
		}()
		sink.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB sink connected",
			"url", cfg.Analytics.InfluxDB.URL,
			"bucket", cfg.Analytics.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB sink disabled")
	}

	// Start the visitor tracker
	tracker := analytics.NewTracker(
		analytics.NewCounterRepository(db.DB),
		analytics.NewVisitorRepository(db.DB),
		sink,
		cfg.VisitorRetention(),
		cfg.OnlineWindow(),
		log,
	)
	tracker.Start(ctx)
	defer func() {
		log.Info("stopping analytics tracker")
		tracker.Close()
	}()
	log.Info("analytics tracker started",
		"retention", cfg.VisitorRetention(),
		"online_window", cfg.OnlineWindow(),
	)

	// Pick the contact mailer: SMTP when a relay is configured, log otherwise
	var mailer contact.Mailer
	if cfg.Contact.SMTP.Host != "" {
		mailer = contact.NewSMTPMailer(cfg.Contact.SMTP, cfg.Contact.Recipient)
		log.Info("SMTP mailer configured", "host", cfg.Contact.SMTP.Host)
	} else {
		mailer = contact.NewLogMailer(log)
		log.Info("SMTP not configured, contact messages will be logged")
	}

	// Start the HTTP server
	server, err := api.New(api.Deps{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Auth:     authService,
		Tracker:  tracker,
		Catalog:  catalog.NewRepository(db.DB),
		Messages: contact.NewStore(db.DB),
		Mailer:   mailer,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting http server: %w", err)
	}
	defer func() {
		log.Info("stopping http server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping http server", "error", closeErr)
		}
	}()

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUNASPHERE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUNASPHERE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
