package accesscode

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"learncenter/internal/apperr"
)

// Alphabet leaves out characters that are easy to misread (0/O, 1/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// State of a code as shown in listings.
type State string

const (
	StateUnused   State = "unused"
	StateRedeemed State = "redeemed"
	StateExpired  State = "expired"
	StateAll      State = "all"
)

// Code grants access to one course. MaxUses of 1 makes it single-use.
type Code struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Code      string     `db:"code" json:"code"`
	MaxUses   int        `db:"max_uses" json:"max_uses"`
	UsedCount int        `db:"used_count" json:"used_count"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Exhausted reports whether every use has been taken.
func (c Code) Exhausted() bool { return c.UsedCount >= c.MaxUses }

// Expired reports whether the code is past its expiry at now.
func (c Code) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// State classifies the code. A fully used code is redeemed even after it
// expires; a code with uses left is unused until it expires.
func (c Code) State(now time.Time) State {
	switch {
	case c.Exhausted():
		return StateRedeemed
	case c.Expired(now):
		return StateExpired
	}
	return StateUnused
}

// Redemption is one user's use of a code.
type Redemption struct {
	CodeID     string    `db:"code_id" json:"code_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	RedeemedAt time.Time `db:"redeemed_at" json:"redeemed_at"`
}

// CheckRedeemable applies the redemption rules to a locked code.
func CheckRedeemable(c Code, now time.Time, alreadyRedeemed, hasAccess bool) error {
	if c.Expired(now) {
		return apperr.Validation("access code %s has expired", c.Code)
	}
	if c.Exhausted() {
		return apperr.Conflict("access code %s has no uses left", c.Code)
	}
	if alreadyRedeemed {
		return apperr.Conflict("access code %s was already redeemed by this user", c.Code)
	}
	if hasAccess {
		return apperr.Conflict("user already has access to course %s", c.CourseID)
	}
	return nil
}

// ListFilter narrows code listings.
type ListFilter struct {
	CourseID string
	State    State
	Page     int
	Limit    int
}

// Normalize validates the state and applies pagination defaults.
func (f *ListFilter) Normalize() error {
	switch f.State {
	case "":
		f.State = StateAll
	case StateUnused, StateRedeemed, StateExpired, StateAll:
	default:
		return apperr.Validation("state %q is not one of unused, redeemed, expired, all", f.State)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return nil
}

// Offset of the first row on the requested page.
func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }

// Store persists codes, redemptions and course access grants.
// InsertCode returns a conflict error when the code string is taken.
// Redeem must run CheckRedeemable and the writes it guards atomically.
type Store interface {
	InsertCode(ctx context.Context, c Code) (Code, error)
	ListCodes(ctx context.Context, f ListFilter, now time.Time) ([]Code, int, error)
	DeleteCode(ctx context.Context, id string) error
	DeleteCodes(ctx context.Context, ids []string) (int, error)
	Redeem(ctx context.Context, userID, code string, now time.Time) (Redemption, error)
	HasAccess(ctx context.Context, userID, courseID string) (bool, error)
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

// NewCode returns a random code of n characters from Alphabet.
func NewCode(n int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[idx.Int64()]
	}
	return string(b), nil
}
