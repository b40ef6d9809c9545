package memstore

import (
	"context"
	"sort"
	"time"

	"learncenter/internal/accesscode"
	"learncenter/internal/apperr"
)

type accessCodeStore struct {
	db *DB
}

// NewAccessCodeStore returns access codes backed by db.
func NewAccessCodeStore(db *DB) accesscode.Store {
	return &accessCodeStore{db: db}
}

func (s *accessCodeStore) InsertCode(ctx context.Context, c accesscode.Code) (accesscode.Code, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.byCode(c.Code) != nil {
		return accesscode.Code{}, apperr.Conflict("access code %s already exists", c.Code)
	}
	c.UsedCount = 0
	s.db.codes[c.ID] = &c
	return c, nil
}

func (s *accessCodeStore) byCode(code string) *accesscode.Code {
	for _, c := range s.db.codes {
		if c.Code == code {
			return c
		}
	}
	return nil
}

func (s *accessCodeStore) ListCodes(ctx context.Context, f accesscode.ListFilter, now time.Time) ([]accesscode.Code, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	matched := make([]accesscode.Code, 0)
	for _, c := range s.db.codes {
		if f.CourseID != "" && c.CourseID != f.CourseID {
			continue
		}
		if f.State != accesscode.StateAll && c.State(now) != f.State {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Code < matched[j].Code
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *accessCodeStore) DeleteCode(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.codes[id]; !ok {
		return apperr.NotFound("access code %s not found", id)
	}
	delete(s.db.codes, id)
	return nil
}

func (s *accessCodeStore) DeleteCodes(ctx context.Context, ids []string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := s.db.codes[id]; ok {
			delete(s.db.codes, id)
			n++
		}
	}
	return n, nil
}

func (s *accessCodeStore) Redeem(ctx context.Context, userID, code string, now time.Time) (accesscode.Redemption, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c := s.byCode(code)
	if c == nil {
		return accesscode.Redemption{}, apperr.NotFound("access code %s not found", code)
	}
	_, redeemed := s.db.redemptions[redemptionKey{c.ID, userID}]
	_, access := s.db.access[accessKey{userID, c.CourseID}]
	if err := accesscode.CheckRedeemable(*c, now, redeemed, access); err != nil {
		return accesscode.Redemption{}, err
	}

	c.UsedCount++
	red := accesscode.Redemption{CodeID: c.ID, UserID: userID, CourseID: c.CourseID, RedeemedAt: now}
	s.db.redemptions[redemptionKey{c.ID, userID}] = red
	s.db.access[accessKey{userID, c.CourseID}] = now
	return red, nil
}

func (s *accessCodeStore) HasAccess(ctx context.Context, userID, courseID string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	_, ok := s.db.access[accessKey{userID, courseID}]
	return ok, nil
}

func (s *accessCodeStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	n := 0
	for id, c := range s.db.codes {
		if c.ExpiresAt != nil && c.ExpiresAt.Before(before) {
			delete(s.db.codes, id)
			n++
		}
	}
	return n, nil
}
