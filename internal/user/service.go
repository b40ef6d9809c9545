package user

import (
	"context"
	"strings"

	"learncenter/internal/apperr"
	"learncenter/internal/auth"
	"learncenter/internal/validation"
)

// CreateInput is a new directory entry.
type CreateInput struct {
	FullName    string `json:"full_name" validate:"required,max=120"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	StudentID   string `json:"student_id" validate:"omitempty,max=40"`
	Role        Role   `json:"role" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
}

// Validator checks tagged input structs.
type Validator interface {
	Struct(s interface{}) error
}

// Service manages the user directory and sign-in.
type Service struct {
	store    Store
	issuer   auth.Issuer
	validate Validator
}

// NewService creates the user service.
func NewService(store Store, issuer auth.Issuer, validate Validator) *Service {
	return &Service{store: store, issuer: issuer, validate: validate}
}

// Create adds an active user. Phone numbers are stored normalized.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if err := s.validate.Struct(in); err != nil {
		return User{}, err
	}
	if !in.Role.Valid() {
		return User{}, apperr.ValidationFields("invalid input", apperr.FieldError{Field: "role", Error: "role is not recognized"})
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	u := User{
		FullName:     strings.TrimSpace(in.FullName),
		PhoneNumber:  validation.NormalizePhone(in.PhoneNumber),
		Role:         in.Role,
		Active:       true,
		PasswordHash: hash,
	}
	if sid := strings.TrimSpace(in.StudentID); sid != "" {
		u.StudentID = &sid
	}
	return s.store.CreateUser(ctx, u)
}

// Get returns a user, active or not.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.UserByID(ctx, id)
}

// SetActive soft-deletes or restores a user.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	if err := s.store.SetUserActive(ctx, id, active); err != nil {
		return User{}, err
	}
	return s.store.UserByID(ctx, id)
}

// Authenticate checks a phone/password pair. Unknown phones, inactive users
// and wrong passwords all fail the same way.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (User, error) {
	u, err := s.store.UserByPhone(ctx, validation.NormalizePhone(phone))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return User{}, apperr.Unauthorized("invalid phone number or password")
		}
		return User{}, err
	}
	if !u.Active || u.PasswordHash == "" || !auth.CheckPassword(u.PasswordHash, password) {
		return User{}, apperr.Unauthorized("invalid phone number or password")
	}
	return u, nil
}

// Login authenticates and issues a token pair.
func (s *Service) Login(ctx context.Context, phone, password string) (User, auth.TokenPair, error) {
	u, err := s.Authenticate(ctx, phone, password)
	if err != nil {
		return User{}, auth.TokenPair{}, err
	}
	pair, err := s.issue(ctx, u)
	return u, pair, err
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, apperr.Unauthorized("refresh token is not valid")
	}
	owner, err := s.store.RefreshTokenOwner(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if owner != claims.Subject {
		return auth.TokenPair{}, apperr.Unauthorized("refresh token is not valid")
	}
	u, err := s.store.UserByID(ctx, owner)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !u.Active {
		return auth.TokenPair{}, apperr.Unauthorized("user is deactivated")
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return auth.TokenPair{}, err
	}
	return s.issue(ctx, u)
}

func (s *Service) issue(ctx context.Context, u User) (auth.TokenPair, error) {
	pair, err := s.issuer.Issue(u.ID, string(u.Role))
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.store.SaveRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}
