package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/taskboard/googleauth"
	"github.com/upb/taskboard/models"
	"github.com/upb/taskboard/repositories"
	"go.uber.org/zap"
)

// linkRetries bounds recovery attempts when two first-logins race through
// the create path; the loser re-runs the lookup chain against the row the
// winner inserted.
const linkRetries = 2

// AccountService maps a verified claim set to exactly one local account,
// creating or linking as needed.
type AccountService struct {
	users       repositories.UserRepository
	defaultRole models.UserRole
	logger      *zap.Logger
}

// NewAccountService creates a new account service. defaultRole is the role
// assigned to accounts created on first login; it comes from configuration,
// not a hard-coded value.
func NewAccountService(users repositories.UserRepository, defaultRole models.UserRole, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:       users,
		defaultRole: defaultRole,
		logger:      logger,
	}
}

// Link resolves a verified claim set to exactly one account:
//
//  1. An account already bound to the subject id is used as-is, with its
//     display attributes refreshed from the latest claims.
//  2. An account matching by email with no bound subject gets the subject
//     bound onto it. An already-bound, differing subject is never
//     overwritten; the email match still resolves to that account.
//  3. Otherwise a new account is created with both keys populated.
//
// A duplicate-key failure on create or bind means a concurrent login won the
// race; the lookup chain is re-run so both requests converge on one account.
func (s *AccountService) Link(ctx context.Context, claims *googleauth.Claims) (*models.User, error) {
	email := models.NormalizeEmail(claims.Email)

	var lastErr error
	for attempt := 0; attempt <= linkRetries; attempt++ {
		user, err := s.linkOnce(ctx, claims, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("account link raced, retrying lookup",
			zap.String("email", email),
			zap.Int("attempt", attempt+1))
	}

	// Exhausted retries; surfaced as conflict so the boundary maps it to a
	// generic failure rather than leaking constraint details.
	return nil, NewDomainError(ErrorTypeConflict, "account linking conflict", lastErr)
}

func (s *AccountService) linkOnce(ctx context.Context, claims *googleauth.Claims, email string) (*models.User, error) {
	// Subject binding takes precedence over email.
	user, err := s.users.GetByGoogleSub(ctx, claims.Sub)
	if err == nil {
		return s.refreshProfile(ctx, user, claims)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, WrapInternal("failed to look up account by subject", err)
	}

	user, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		if user.GoogleSub == "" {
			if err := s.users.BindGoogleSub(ctx, user.ID, claims.Sub, claims.Picture); err != nil {
				if errors.Is(err, repositories.ErrDuplicate) || errors.Is(err, repositories.ErrNotFound) {
					// Lost a race: either the sub got bound elsewhere or the
					// row changed under us. Retry from the top.
					return nil, repositories.ErrDuplicate
				}
				return nil, WrapInternal("failed to bind subject to account", err)
			}
			user.GoogleSub = claims.Sub
			if claims.Picture != "" {
				user.Avatar = claims.Picture
			}
			s.logger.Info("external identity bound to existing account",
				zap.String("user_id", user.ID.String()))
		}
		// A differing bound subject stays untouched; the email match wins.
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, WrapInternal("failed to look up account by email", err)
	}

	// First login: create with both keys populated.
	user = models.NewUser(claims.Sub, email, claims.Name, claims.Picture, s.defaultRole)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, repositories.ErrDuplicate
		}
		return nil, WrapInternal("failed to create account", err)
	}

	s.logger.Info("account created on first login",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return user, nil
}

// refreshProfile updates mutable display attributes when the latest claims
// differ from the stored record
func (s *AccountService) refreshProfile(ctx context.Context, user *models.User, claims *googleauth.Claims) (*models.User, error) {
	name := user.Name
	avatar := user.Avatar
	if claims.Name != "" {
		name = claims.Name
	}
	if claims.Picture != "" {
		avatar = claims.Picture
	}

	if name == user.Name && avatar == user.Avatar {
		return user, nil
	}

	if err := s.users.UpdateProfile(ctx, user.ID, name, avatar); err != nil {
		// Stale display data is not worth failing a login over.
		s.logger.Warn("failed to refresh account profile",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return user, nil
	}

	user.Name = name
	user.Avatar = avatar
	return user, nil
}

// Get retrieves an account by internal id
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapInternal("failed to get account", err)
	}
	return user, nil
}
