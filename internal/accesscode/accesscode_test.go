package accesscode_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/accesscode"
	"learncenter/internal/apperr"
	"learncenter/internal/memstore"
	"learncenter/internal/user"
	"learncenter/internal/validation"
)

func newService() (*accesscode.Service, accesscode.Store) {
	st := memstore.NewAccessCodeStore(memstore.Open())
	return accesscode.NewService(st, validation.New()), st
}

func TestNewCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c, err := accesscode.NewCode(10)
		require.NoError(t, err)
		assert.Len(t, c, 10)
		for _, r := range c {
			assert.True(t, strings.ContainsRune(accesscode.Alphabet, r), "unexpected %q", r)
		}
		seen[c] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestGenerateDefaults(t *testing.T) {
	svc, _ := newService()
	codes, err := svc.Generate(context.Background(), accesscode.GenerateInput{CourseID: "c1"}, "admin")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Len(t, codes[0].Code, 8)
	assert.Equal(t, 1, codes[0].MaxUses)
	assert.Nil(t, codes[0].ExpiresAt)
	assert.Equal(t, "admin", codes[0].CreatedBy)
}

func TestGenerateValidation(t *testing.T) {
	svc, _ := newService()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		in   accesscode.GenerateInput
	}{
		{"no course", accesscode.GenerateInput{Count: 1}},
		{"too many", accesscode.GenerateInput{CourseID: "c1", Count: 501}},
		{"too short", accesscode.GenerateInput{CourseID: "c1", Length: 5}},
		{"too long", accesscode.GenerateInput{CourseID: "c1", Length: 17}},
		{"negative uses", accesscode.GenerateInput{CourseID: "c1", MaxUses: -1}},
		{"expired already", accesscode.GenerateInput{CourseID: "c1", ExpiresAt: &past}},
		{"both expiries", accesscode.GenerateInput{CourseID: "c1", ExpiresAt: &future, TTLHours: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tt.in, "admin")
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestGenerateBatch(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	codes, err := svc.Generate(ctx, accesscode.GenerateInput{CourseID: "c1", Count: 25, MaxUses: 3, Length: 6, TTLHours: 24}, "admin")
	require.NoError(t, err)
	require.Len(t, codes, 25)

	unique := map[string]bool{}
	for _, c := range codes {
		unique[c.Code] = true
		assert.Equal(t, 3, c.MaxUses)
		require.NotNil(t, c.ExpiresAt)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), *c.ExpiresAt, time.Minute)
	}
	assert.Len(t, unique, 25)

	list, total, err := svc.List(ctx, accesscode.ListFilter{CourseID: "c1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, list, 10)
}

func TestRedeemSingleUse(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	codes, err := svc.Generate(ctx, accesscode.GenerateInput{CourseID: "c1"}, "admin")
	require.NoError(t, err)
	code := codes[0].Code

	red, err := svc.Redeem(ctx, "u1", " "+strings.ToLower(code)+" ")
	require.NoError(t, err)
	assert.Equal(t, "c1", red.CourseID)

	ok, err := svc.HasAccess(ctx, "u1", user.RoleStudent, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Redeem(ctx, "u2", code)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "exhausted code: %v", err)

	_, err = svc.Redeem(ctx, "u1", "NOPE2345")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Redeem(ctx, "u1", "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	ok, err = svc.HasAccess(ctx, "u2", user.RoleStudent, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasAccess(ctx, "teacher", user.RoleInstructor, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedeemMultiUse(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	codes, err := svc.Generate(ctx, accesscode.GenerateInput{CourseID: "c1", MaxUses: 2}, "admin")
	require.NoError(t, err)
	code := codes[0].Code

	_, err = svc.Redeem(ctx, "u1", code)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, "u1", code)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "same user twice")

	_, err = svc.Redeem(ctx, "u2", code)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "u3", code)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// a second code for a course the user already has
	more, err := svc.Generate(ctx, accesscode.GenerateInput{CourseID: "c1"}, "admin")
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, "u1", more[0].Code)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRedeemConcurrentSingleUse(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	codes, err := svc.Generate(ctx, accesscode.GenerateInput{CourseID: "c1"}, "admin")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Redeem(ctx, "user-"+string(rune('a'+i)), codes[0].Code); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestCheckRedeemable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	c := accesscode.Code{Code: "ABCDEFGH", CourseID: "c1", MaxUses: 1}

	assert.NoError(t, accesscode.CheckRedeemable(c, now, false, false))

	expired := c
	expired.ExpiresAt = &past
	assert.True(t, apperr.Is(accesscode.CheckRedeemable(expired, now, false, false), apperr.KindValidation))

	used := c
	used.UsedCount = 1
	assert.True(t, apperr.Is(accesscode.CheckRedeemable(used, now, false, false), apperr.KindConflict))

	assert.True(t, apperr.Is(accesscode.CheckRedeemable(c, now, true, false), apperr.KindConflict))
	assert.True(t, apperr.Is(accesscode.CheckRedeemable(c, now, false, true), apperr.KindConflict))
}

func TestCodeState(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	assert.Equal(t, accesscode.StateUnused, accesscode.Code{MaxUses: 1}.State(now))
	assert.Equal(t, accesscode.StateUnused, accesscode.Code{MaxUses: 3, UsedCount: 1, ExpiresAt: &future}.State(now))
	assert.Equal(t, accesscode.StateExpired, accesscode.Code{MaxUses: 1, ExpiresAt: &past}.State(now))
	assert.Equal(t, accesscode.StateRedeemed, accesscode.Code{MaxUses: 1, UsedCount: 1, ExpiresAt: &past}.State(now))
}

func TestListStatesAndDelete(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()
	past := time.Now().Add(-2 * time.Hour)

	codes, err := svc.Generate(ctx, accesscode.GenerateInput{CourseID: "c1", Count: 3}, "admin")
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, "u1", codes[0].Code)
	require.NoError(t, err)
	_, err = st.InsertCode(ctx, accesscode.Code{ID: "old", CourseID: "c1", Code: "OLDCODE2", MaxUses: 1, ExpiresAt: &past})
	require.NoError(t, err)

	count := func(state accesscode.State) int {
		_, total, err := svc.List(ctx, accesscode.ListFilter{CourseID: "c1", State: state})
		require.NoError(t, err)
		return total
	}
	assert.Equal(t, 2, count(accesscode.StateUnused))
	assert.Equal(t, 1, count(accesscode.StateRedeemed))
	assert.Equal(t, 1, count(accesscode.StateExpired))
	assert.Equal(t, 4, count(accesscode.StateAll))
	assert.Equal(t, 4, count(""))

	_, _, err = svc.List(ctx, accesscode.ListFilter{State: "sold"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, svc.Delete(ctx, codes[1].ID))
	assert.True(t, apperr.Is(svc.Delete(ctx, codes[1].ID), apperr.KindNotFound))

	n, err := svc.BulkDelete(ctx, []string{codes[2].ID, "missing", codes[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.BulkDelete(ctx, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	n, err = svc.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, count(accesscode.StateAll))
}
