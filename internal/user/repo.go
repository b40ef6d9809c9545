package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"learncenter/internal/apperr"
	"learncenter/internal/store"
)

const userColumns = `id, full_name, phone_number, student_id, role, active, password_hash, created_at, updated_at`

// Repository persists users in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts u. Duplicate phone numbers or student ids are conflicts.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO users (id, full_name, phone_number, student_id, role, active, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.FullName, u.PhoneNumber, u.StudentID, u.Role, u.Active, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, apperr.Conflict("phone number or student id already registered")
		}
		return User{}, errors.Wrap(err, "insert user")
	}
	return u, nil
}

// UserByID returns a single user by id.
func (r *Repository) UserByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, apperr.NotFound("user %s not found", id)
	}
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if store.IsNoRows(err) {
		return User{}, apperr.NotFound("user %s not found", id)
	}
	return u, errors.Wrap(err, "select user by id")
}

// UserByPhone matches the unique phone index.
func (r *Repository) UserByPhone(ctx context.Context, phone string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
	if store.IsNoRows(err) {
		return User{}, apperr.NotFound("no user with phone number %s", phone)
	}
	return u, errors.Wrap(err, "select user by phone")
}

// SetUserActive toggles the soft-delete flag.
func (r *Repository) SetUserActive(ctx context.Context, id string, active bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("user %s not found", id)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return errors.Wrap(err, "update user active")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, token, expiresAt)
	return errors.Wrap(err, "insert refresh token")
}

// RefreshTokenOwner returns the user a live (unrevoked, unexpired) token belongs to.
func (r *Repository) RefreshTokenOwner(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.db.GetContext(ctx, &userID, `
		SELECT user_id FROM refresh_tokens
		WHERE token = $1 AND revoked = FALSE AND expires_at > NOW()
	`, token)
	if store.IsNoRows(err) {
		return "", apperr.Unauthorized("refresh token is not valid")
	}
	return userID, errors.Wrap(err, "select refresh token")
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return errors.Wrap(err, "revoke refresh token")
}
