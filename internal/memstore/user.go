package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"learncenter/internal/apperr"
	"learncenter/internal/user"
)

type userStore struct {
	db *DB
}

// NewUserStore returns the user directory backed by db.
func NewUserStore(db *DB) user.Store {
	return &userStore{db: db}
}

func (s *userStore) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.users {
		if existing.PhoneNumber == u.PhoneNumber {
			return user.User{}, apperr.Conflict("phone number or student id already registered")
		}
		if u.StudentID != nil && existing.StudentID != nil && *existing.StudentID == *u.StudentID {
			return user.User{}, apperr.Conflict("phone number or student id already registered")
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.db.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.db.users[u.ID] = &u
	return u, nil
}

func (s *userStore) UserByID(ctx context.Context, id string) (user.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if u, ok := s.db.users[id]; ok {
		return *u, nil
	}
	return user.User{}, apperr.NotFound("user %s not found", id)
}

func (s *userStore) UserByPhone(ctx context.Context, phone string) (user.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if u.PhoneNumber == phone {
			return *u, nil
		}
	}
	return user.User{}, apperr.NotFound("no user with phone number %s", phone)
}

func (s *userStore) SetUserActive(ctx context.Context, id string, active bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return apperr.NotFound("user %s not found", id)
	}
	u.Active = active
	u.UpdatedAt = s.db.now().UTC()
	return nil
}

func (s *userStore) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.refreshTokens[token] = &refreshToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *userStore) RefreshTokenOwner(ctx context.Context, token string) (string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rt, ok := s.db.refreshTokens[token]
	if !ok || rt.revoked || !rt.expiresAt.After(s.db.now()) {
		return "", apperr.Unauthorized("refresh token is not valid")
	}
	return rt.userID, nil
}

func (s *userStore) RevokeRefreshToken(ctx context.Context, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if rt, ok := s.db.refreshTokens[token]; ok {
		rt.revoked = true
	}
	return nil
}
