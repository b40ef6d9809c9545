package accesscode

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learncenter/internal/apperr"
	"learncenter/internal/user"
)

const (
	defaultLength  = 8
	maxCollisions  = 5
	maxBulkDelete  = 500
	redeemOK       = "ok"
	redeemRejected = "rejected"
)

var redemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "access_code_redemptions_total",
	Help: "Access code redemption attempts, by result.",
}, []string{"result"})

// GenerateInput asks for a batch of codes for one course.
type GenerateInput struct {
	CourseID  string     `json:"course_id" validate:"required"`
	Count     int        `json:"count" validate:"omitempty,min=1,max=500"`
	MaxUses   int        `json:"max_uses" validate:"omitempty,min=1"`
	Length    int        `json:"length" validate:"omitempty,min=6,max=16"`
	ExpiresAt *time.Time `json:"expires_at"`
	TTLHours  int        `json:"ttl_hours" validate:"omitempty,min=1"`
}

// Validator checks tagged input structs.
type Validator interface {
	Struct(s interface{}) error
}

// Service manages course access codes.
type Service struct {
	store    Store
	validate Validator
	now      func() time.Time
}

// NewService creates the access code service.
func NewService(store Store, validate Validator) *Service {
	return &Service{store: store, validate: validate, now: time.Now}
}

// Generate creates in.Count codes. A code that collides with an existing one
// is regenerated a few times before giving up.
func (s *Service) Generate(ctx context.Context, in GenerateInput, createdBy string) ([]Code, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if in.ExpiresAt != nil && in.TTLHours > 0 {
		return nil, apperr.Validation("set either expires_at or ttl_hours, not both")
	}
	expiresAt := in.ExpiresAt
	if in.TTLHours > 0 {
		t := now.Add(time.Duration(in.TTLHours) * time.Hour)
		expiresAt = &t
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, apperr.Validation("expires_at must be in the future")
	}
	if in.Count == 0 {
		in.Count = 1
	}
	if in.MaxUses == 0 {
		in.MaxUses = 1
	}
	if in.Length == 0 {
		in.Length = defaultLength
	}

	out := make([]Code, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		c, err := s.insertOne(ctx, Code{
			CourseID:  strings.TrimSpace(in.CourseID),
			MaxUses:   in.MaxUses,
			ExpiresAt: expiresAt,
			CreatedBy: createdBy,
			CreatedAt: now,
		}, in.Length)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) insertOne(ctx context.Context, c Code, length int) (Code, error) {
	for attempt := 0; attempt < maxCollisions; attempt++ {
		code, err := NewCode(length)
		if err != nil {
			return Code{}, errors.Wrap(err, "generate code")
		}
		c.ID = uuid.NewString()
		c.Code = code
		saved, err := s.store.InsertCode(ctx, c)
		if apperr.Is(err, apperr.KindConflict) {
			continue
		}
		return saved, err
	}
	return Code{}, errors.Errorf("no free code after %d attempts", maxCollisions)
}

// List returns a page of codes and the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Code, int, error) {
	if err := f.Normalize(); err != nil {
		return nil, 0, err
	}
	return s.store.ListCodes(ctx, f, s.now().UTC())
}

// Delete removes one code.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteCode(ctx, id)
}

// BulkDelete removes the given codes and returns how many existed.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("ids must not be empty")
	}
	if len(ids) > maxBulkDelete {
		return 0, apperr.Validation("at most %d ids per request", maxBulkDelete)
	}
	return s.store.DeleteCodes(ctx, ids)
}

// Redeem uses a code on behalf of userID and grants course access.
func (s *Service) Redeem(ctx context.Context, userID, code string) (Redemption, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Redemption{}, apperr.ValidationFields("invalid input", apperr.FieldError{Field: "code", Error: "code is required"})
	}
	r, err := s.store.Redeem(ctx, userID, code, s.now().UTC())
	if err != nil {
		redemptionsTotal.WithLabelValues(redeemRejected).Inc()
		return Redemption{}, err
	}
	redemptionsTotal.WithLabelValues(redeemOK).Inc()
	return r, nil
}

// HasAccess reports whether the user may open the course. Staff always can.
func (s *Service) HasAccess(ctx context.Context, userID string, role user.Role, courseID string) (bool, error) {
	if role.Staff() {
		return true, nil
	}
	return s.store.HasAccess(ctx, userID, courseID)
}

// Purge deletes codes that expired before now minus retention.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int, error) {
	return s.store.PurgeExpired(ctx, s.now().UTC().Add(-retention))
}
