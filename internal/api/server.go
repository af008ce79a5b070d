// Package api provides the HTTP server and REST endpoints for LunaSphere.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lunasphere/lunasphere-core/internal/analytics"
	"github.com/lunasphere/lunasphere-core/internal/auth"
	"github.com/lunasphere/lunasphere-core/internal/catalog"
	"github.com/lunasphere/lunasphere-core/internal/contact"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/database"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/logging"
)

const (
	// gracefulShutdownTimeout is how long in-flight requests get to finish.
	gracefulShutdownTimeout = 10 * time.Second

	// tokenSweepInterval is how often expired refresh tokens are removed.
	tokenSweepInterval = time.Hour
)

// Deps carries everything the HTTP server needs.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	DB       *database.DB
	Auth     *auth.Service
	Tracker  *analytics.Tracker
	Catalog  catalog.Repository
	Messages contact.Store
	Mailer   contact.Mailer
	Version  string

	// SiteDir overrides the embedded front end with a filesystem directory.
	// Empty in production.
	SiteDir string
}

// Server is the LunaSphere HTTP server.
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	db      *database.DB
	auth    *auth.Service
	tracker *analytics.Tracker
	catalog catalog.Repository
	msgs    contact.Store
	mailer  contact.Mailer
	version string
	siteDir string

	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Server from its dependencies.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config is required")
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.DB == nil:
		return nil, errors.New("api: database is required")
	case deps.Auth == nil:
		return nil, errors.New("api: auth service is required")
	case deps.Tracker == nil:
		return nil, errors.New("api: analytics tracker is required")
	case deps.Catalog == nil:
		return nil, errors.New("api: catalog repository is required")
	case deps.Messages == nil:
		return nil, errors.New("api: contact store is required")
	}

	mailer := deps.Mailer
	if mailer == nil {
		mailer = contact.NewLogMailer(deps.Logger)
	}

	return &Server{
		config:  deps.Config,
		logger:  deps.Logger.With("component", "api"),
		db:      deps.DB,
		auth:    deps.Auth,
		tracker: deps.Tracker,
		catalog: deps.Catalog,
		msgs:    deps.Messages,
		mailer:  mailer,
		version: deps.Version,
		siteDir: deps.SiteDir,
	}, nil
}

// Start begins serving HTTP requests and launches background maintenance.
// It returns once the listener is up; use Close for a graceful stop.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout(),
		WriteTimeout: s.config.WriteTimeout(),
		IdleTimeout:  s.config.IdleTimeout(),
	}

	s.wg.Add(1)
	go s.tokenSweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.Server.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.Server.TLS.CertFile, s.config.Server.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Give the listener a moment to fail fast on bind errors.
	select {
	case err := <-errCh:
		s.cancel()
		return fmt.Errorf("starting http server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	s.logger.Info("http server listening", "addr", s.config.Addr(), "tls", s.config.Server.TLS.Enabled)
	return nil
}

// Close gracefully shuts down the server and background loops.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// tokenSweepLoop periodically removes expired refresh tokens.
func (s *Server) tokenSweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.auth.CleanExpiredTokens(ctx)
			if err != nil {
				s.logger.Error("sweeping expired tokens failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Debug("swept expired refresh tokens", "count", removed)
			}
		}
	}
}

// HealthCheck verifies the server's critical dependencies.
func (s *Server) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}
