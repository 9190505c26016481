package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role tag of an account
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// IsValid reports whether the role is a member of the enumerated set
func (r UserRole) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a local account backed by an external Google identity.
// GoogleSub is empty until the first successful verification binds it; once
// bound it is unique across accounts, as is the normalized email.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	GoogleSub string    `json:"-" db:"google_sub"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Avatar    string    `json:"avatar,omitempty" db:"avatar"`
	Role      UserRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance with a normalized email
func NewUser(googleSub, email, name, avatar string, role UserRole) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		GoogleSub: googleSub,
		Email:     NormalizeEmail(email),
		Name:      name,
		Avatar:    avatar,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeEmail lowercases and trims an email so the uniqueness constraint
// cannot be sidestepped by case variants
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicUser is the account shape returned to clients, sensitive and
// internal fields stripped
type PublicUser struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Avatar string    `json:"avatar,omitempty"`
	Role   UserRole  `json:"role"`
}

// Public returns the client-facing view of the account
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}
