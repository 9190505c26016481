package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/taskboard/models"
	"github.com/upb/taskboard/repositories"
	"go.uber.org/zap"
)

// pq error code for unique constraint violations
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres duplicate-key error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new account. A duplicate google_sub or email surfaces as
// repositories.ErrDuplicate so the linker can recover from the race.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, google_sub, email, name, avatar, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		nullableString(user.GoogleSub),
		user.Email,
		user.Name,
		user.Avatar,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// GetByID retrieves an account by internal id
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, google_sub, email, name, avatar, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByGoogleSub retrieves an account by its bound external subject id
func (r *UserRepository) GetByGoogleSub(ctx context.Context, googleSub string) (*models.User, error) {
	query := `
		SELECT id, google_sub, email, name, avatar, role, created_at, updated_at
		FROM users
		WHERE google_sub = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, googleSub))
}

// GetByEmail retrieves an account by normalized email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, google_sub, email, name, avatar, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// BindGoogleSub binds an external subject id to an account whose google_sub
// is still unset. The guard in the WHERE clause makes an already-bound,
// differing subject impossible to overwrite.
func (r *UserRepository) BindGoogleSub(ctx context.Context, id uuid.UUID, googleSub, avatar string) error {
	query := `
		UPDATE users
		SET google_sub = $2,
		    avatar = CASE WHEN $3 <> '' THEN $3 ELSE avatar END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND google_sub IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, googleSub, avatar)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to bind google sub: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("google sub bound", zap.String("id", id.String()))
	return nil
}

// UpdateProfile refreshes the mutable display attributes
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, avatar string) error {
	query := `
		UPDATE users
		SET name = $2,
		    avatar = $3,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, name, avatar)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("user profile updated", zap.String("id", id.String()))
	return nil
}

// scanUser scans a single account row
func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var googleSub sql.NullString

	err := row.Scan(
		&user.ID,
		&googleSub,
		&user.Email,
		&user.Name,
		&user.Avatar,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.GoogleSub = googleSub.String
	return user, nil
}

// nullableString maps an empty string to SQL NULL so the partial unique
// constraint on google_sub ignores unbound accounts
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
