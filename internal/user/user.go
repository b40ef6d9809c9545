package user

import (
	"context"
	"time"
)

// Role of a user in the center.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Staff roles may take attendance and manage access codes.
func (r Role) Staff() bool {
	return r == RoleInstructor || r == RoleAdmin || r == RoleSuperAdmin
}

// User is an entry of the user directory. Users are never hard-deleted;
// deactivation clears Active instead.
type User struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	PhoneNumber  string    `db:"phone_number" json:"phone_number"`
	StudentID    *string   `db:"student_id" json:"student_id,omitempty"`
	Role         Role      `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Store persists users and their refresh tokens.
// Lookups return an apperr not-found error when nothing matches.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByPhone(ctx context.Context, phone string) (User, error)
	SetUserActive(ctx context.Context, id string, active bool) error

	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	RefreshTokenOwner(ctx context.Context, token string) (string, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}
