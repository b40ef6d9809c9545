package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/apperr"
	"learncenter/internal/attendance"
	"learncenter/internal/identity"
	"learncenter/internal/logger"
	"learncenter/internal/store/storetest"
	"learncenter/internal/user"
)

func TestRepository(t *testing.T) {
	db := storetest.Open(t)
	repo := attendance.NewRepository(db)
	ctx := context.Background()

	staff := storetest.User(t, db)
	alice := storetest.User(t, db)
	bob := storetest.User(t, db)
	course := "course-" + uuid.NewString()
	day1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	newRecord := func(userID string, day time.Time, hour int, status attendance.Status) attendance.Record {
		return attendance.Record{
			UserID:     userID,
			RecordedBy: staff,
			Type:       attendance.TypeCourse,
			Status:     status,
			RecordedAt: day.Add(time.Duration(hour) * time.Hour),
			Day:        day,
			ContextKey: attendance.ContextKey(attendance.TypeCourse, course, ""),
			CourseID:   course,
		}
	}

	first, err := repo.InsertRecord(ctx, newRecord(alice, day1, 9, attendance.StatusPresent))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	t.Run("duplicate key is a conflict", func(t *testing.T) {
		_, err := repo.InsertRecord(ctx, newRecord(alice, day1, 11, attendance.StatusLate))
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

		existing, err := repo.RecordForContext(ctx, alice, day1, first.ContextKey)
		require.NoError(t, err)
		require.NotNil(t, existing)
		assert.Equal(t, first.ID, existing.ID)
		assert.Equal(t, attendance.StatusPresent, existing.Status)
		assert.True(t, day1.Equal(existing.Day), "day %v", existing.Day)

		none, err := repo.RecordForContext(ctx, alice, day2, first.ContextKey)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	_, err = repo.InsertRecord(ctx, newRecord(bob, day1, 10, attendance.StatusLate))
	require.NoError(t, err)
	last, err := repo.InsertRecord(ctx, newRecord(alice, day2, 9, attendance.StatusAbsent))
	require.NoError(t, err)

	t.Run("list filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter attendance.ListFilter
			total  int
		}{
			{"course", attendance.ListFilter{CourseID: course}, 3},
			{"status and user", attendance.ListFilter{CourseID: course, Status: attendance.StatusPresent, UserID: alice}, 1},
			{"single day", attendance.ListFilter{CourseID: course, From: day2, To: day2, Type: attendance.TypeCourse}, 1},
			{"other type", attendance.ListFilter{CourseID: course, Type: attendance.TypeGeneral}, 0},
			{"user id that is not a uuid", attendance.ListFilter{CourseID: course, UserID: "abc"}, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := tt.filter
				f.Normalize()
				recs, total, err := repo.ListRecords(ctx, f)
				require.NoError(t, err)
				assert.Equal(t, tt.total, total)
				assert.Len(t, recs, tt.total)
			})
		}
	})

	t.Run("list pages newest first", func(t *testing.T) {
		f := attendance.ListFilter{CourseID: course, Limit: 2, Page: 1}
		recs, total, err := repo.ListRecords(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, recs, 2)
		assert.Equal(t, last.ID, recs[0].ID)
		assert.Equal(t, bob, recs[1].UserID)

		f.Page = 2
		recs, _, err = repo.ListRecords(ctx, f)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, first.ID, recs[0].ID)
	})

	t.Run("dashboard counts", func(t *testing.T) {
		f := attendance.DashboardFilter{From: day1, To: day2, CourseID: course}
		c, err := repo.CountByStatus(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, attendance.Counts{Present: 1, Late: 1, Absent: 1}, c)

		days, err := repo.DailyCounts(ctx, f)
		require.NoError(t, err)
		require.Len(t, days, 2)
		assert.True(t, day1.Equal(days[0].Day))
		assert.Equal(t, attendance.Counts{Present: 1, Late: 1}, days[0].Counts)
		assert.True(t, day2.Equal(days[1].Day))
		assert.Equal(t, attendance.Counts{Absent: 1}, days[1].Counts)

		c, err = repo.CountByStatus(ctx, attendance.DashboardFilter{From: day2, CourseID: course})
		require.NoError(t, err)
		assert.Equal(t, 1, c.Total())
	})

	t.Run("update and delete", func(t *testing.T) {
		late, note := attendance.StatusLate, "bus strike"
		rec, err := repo.UpdateRecord(ctx, last.ID, attendance.Update{Status: &late, Note: &note})
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusLate, rec.Status)
		assert.Equal(t, "bus strike", rec.Note)
		assert.Equal(t, course, rec.CourseID)

		got, err := repo.GetRecord(ctx, last.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusLate, got.Status)

		_, err = repo.DeleteRecord(ctx, last.ID)
		require.NoError(t, err)
		_, err = repo.GetRecord(ctx, last.ID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		_, err = repo.DeleteRecord(ctx, last.ID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		_, err = repo.UpdateRecord(ctx, "abc", attendance.Update{Status: &late})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestRecorderOnPostgresRejectsConcurrentDuplicates(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	repo := attendance.NewRepository(db)
	rec := attendance.NewRecorder(repo, identity.NewResolver(user.NewRepository(db)), nil, time.UTC, logger.Discard())

	staff := storetest.User(t, db)
	student := storetest.User(t, db)
	course := "course-" + uuid.NewString()

	const scans = 8
	errs := make([]error, scans)
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := attendance.RecordInput{
				Identifiers: identity.Identifiers{UserID: student},
				CourseID:    course,
				Status:      "present",
				RecordedBy:  staff,
			}
			if i%2 == 1 {
				in.CourseID = " " + course + " "
			}
			_, errs[i] = rec.Record(ctx, in)
		}(i)
	}
	wg.Wait()

	written := 0
	for _, err := range errs {
		if err == nil {
			written++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	}
	assert.Equal(t, 1, written)

	_, total, err := rec.List(ctx, attendance.ListFilter{CourseID: course})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
