package app

import (
	"context"
	"fmt"

	"github.com/upb/taskboard/config"
	"github.com/upb/taskboard/googleauth"
	"github.com/upb/taskboard/middleware"
	"github.com/upb/taskboard/models"
	"github.com/upb/taskboard/repositories"
	"github.com/upb/taskboard/repositories/postgres"
	"github.com/upb/taskboard/services"
	"github.com/upb/taskboard/session"
	"go.uber.org/zap"
)

// IdentityVerifier validates an external identity assertion and extracts a
// verified claim set
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*googleauth.Claims, error)
}

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection; nothing reads session or account
// state from package-level globals.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	UserRepo repositories.UserRepository
	TaskRepo repositories.TaskRepository

	// Identity and session
	Verifier         IdentityVerifier
	Sessions         *session.Issuer
	SessionValidator *session.Validator
	AuthMiddleware   *middleware.AuthMiddleware

	// Services
	Accounts *services.AccountService
	Tasks    *services.TaskService
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initAuth(cfg)
	deps.initServices(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection pool and schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.UserRepo = postgres.NewUserRepository(d.DB, d.Logger)
	d.TaskRepo = postgres.NewTaskRepository(d.DB, d.Logger)
	d.Logger.Info("repositories initialized")
}

// initAuth wires identity verification and the session layer
func (d *Dependencies) initAuth(cfg *config.Config) {
	d.Verifier = googleauth.NewVerifier(cfg.Google)
	d.Sessions = session.NewIssuer(cfg.Session, cfg.IsProduction())
	d.SessionValidator = session.NewValidator(cfg.Session)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.SessionValidator, cfg.Session.CookieName, d.Logger)
	d.Logger.Info("auth initialized",
		zap.String("cookie", cfg.Session.CookieName),
		zap.Duration("session_ttl", cfg.Session.TTL))
}

// initServices wires the domain services
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Accounts = services.NewAccountService(d.UserRepo, models.UserRole(cfg.Session.DefaultRole), d.Logger)
	d.Tasks = services.NewTaskService(d.TaskRepo, d.Logger)
	d.Logger.Info("services initialized")
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
