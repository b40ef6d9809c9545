// Package identity turns a phone number, a user id or a scanned QR payload
// into exactly one user record.
package identity

import (
	"context"
	"strings"

	"learncenter/internal/apperr"
	"learncenter/internal/user"
	"learncenter/internal/validation"
)

// Lookup is the read side of the user directory.
type Lookup interface {
	UserByID(ctx context.Context, id string) (user.User, error)
	UserByPhone(ctx context.Context, phone string) (user.User, error)
}

// Identifiers names the user to resolve. Direct identifiers win over QR.
type Identifiers struct {
	UserID      string
	PhoneNumber string
	QR          *QRPayload
}

func (ids Identifiers) direct() bool {
	return ids.UserID != "" || ids.PhoneNumber != ""
}

// Resolver is read-only.
type Resolver struct {
	users Lookup
}

// NewResolver creates a resolver over the user directory.
func NewResolver(users Lookup) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the single user matching ids.
//
// A user id that resolves takes precedence over the phone number; if both are
// given and resolve to different users the call fails as ambiguous. When no
// direct identifier is supplied, the QR payload's embedded identifiers are
// resolved with the same precedence.
func (r *Resolver) Resolve(ctx context.Context, ids Identifiers) (user.User, error) {
	ids.UserID = strings.TrimSpace(ids.UserID)
	ids.PhoneNumber = validation.NormalizePhone(ids.PhoneNumber)

	if !ids.direct() {
		if ids.QR == nil {
			return user.User{}, apperr.Validation("a user id, phone number or QR payload is required")
		}
		if err := ids.QR.Validate(); err != nil {
			return user.User{}, err
		}
		return r.Resolve(ctx, Identifiers{UserID: ids.QR.UserID, PhoneNumber: ids.QR.PhoneNumber})
	}

	if ids.UserID != "" {
		byID, err := r.active(r.users.UserByID(ctx, ids.UserID))
		switch {
		case err == nil:
			if ids.PhoneNumber != "" {
				byPhone, err := r.active(r.users.UserByPhone(ctx, ids.PhoneNumber))
				if err != nil && !apperr.Is(err, apperr.KindNotFound) {
					return user.User{}, err
				}
				if err == nil && byPhone.ID != byID.ID {
					return user.User{}, apperr.Ambiguous("user id and phone number identify different users")
				}
			}
			return byID, nil
		case !apperr.Is(err, apperr.KindNotFound):
			return user.User{}, err
		case ids.PhoneNumber == "":
			return user.User{}, err
		}
	}

	return r.active(r.users.UserByPhone(ctx, ids.PhoneNumber))
}

// active hides soft-deleted users.
func (r *Resolver) active(u user.User, err error) (user.User, error) {
	if err != nil {
		return user.User{}, err
	}
	if !u.Active {
		return user.User{}, apperr.NotFound("user %s not found", u.ID)
	}
	return u, nil
}
