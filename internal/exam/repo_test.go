package exam_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/apperr"
	"learncenter/internal/exam"
	"learncenter/internal/store/storetest"
	"learncenter/internal/validation"
)

func TestRepository(t *testing.T) {
	db := storetest.Open(t)
	repo := exam.NewRepository(db)
	ctx := context.Background()
	staff := storetest.User(t, db)
	student := storetest.User(t, db)

	questions := exam.Questions{
		{Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Explanation: "arithmetic"},
		{Text: "Capital of Korea?", Options: []string{"Busan", "Seoul", "Incheon"}, CorrectAnswer: 1, ImageURL: "https://img.example/map.png"},
	}
	e, err := repo.CreateExam(ctx, exam.Exam{ID: uuid.NewString(), CourseID: "c1", Title: "Quiz", Questions: questions, CreatedBy: staff})
	require.NoError(t, err)
	assert.False(t, e.CreatedAt.IsZero())

	t.Run("questions survive the jsonb column", func(t *testing.T) {
		got, err := repo.GetExam(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, questions, got.Questions)
		assert.Equal(t, staff, got.CreatedBy)

		for _, id := range []string{"abc", uuid.NewString()} {
			_, err = repo.GetExam(ctx, id)
			assert.True(t, apperr.Is(err, apperr.KindNotFound), "id %q", id)
		}
	})

	t.Run("attempts", func(t *testing.T) {
		submitted := time.Now().UTC()
		older, err := repo.CreateAttempt(ctx, exam.Attempt{
			ID:             uuid.NewString(),
			UserID:         student,
			ExamID:         e.ID,
			Answers:        exam.Answers{{QuestionIndex: 0, SelectedAnswer: 0}},
			TotalQuestions: 2,
			SubmittedAt:    submitted.Add(-time.Hour),
		})
		require.NoError(t, err)
		answers := exam.Answers{{QuestionIndex: 0, SelectedAnswer: 1, IsCorrect: true}, {QuestionIndex: 1, SelectedAnswer: 2}}
		newer, err := repo.CreateAttempt(ctx, exam.Attempt{
			ID:             uuid.NewString(),
			UserID:         student,
			ExamID:         e.ID,
			Answers:        answers,
			CorrectCount:   1,
			TotalQuestions: 2,
			SubmittedAt:    submitted,
		})
		require.NoError(t, err)

		got, err := repo.GetAttempt(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, answers, got.Answers)
		assert.Equal(t, 1, got.CorrectCount)
		assert.WithinDuration(t, submitted, got.SubmittedAt, time.Millisecond)

		list, err := repo.ListAttempts(ctx, student)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)

		list, err = repo.ListAttempts(ctx, staff)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = repo.GetAttempt(ctx, "abc")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("review replays a stored attempt", func(t *testing.T) {
		svc := exam.NewService(repo, validation.New())
		a, err := svc.SubmitAttempt(ctx, student, e.ID, []exam.Submission{{QuestionIndex: 1, SelectedAnswer: 1}})
		require.NoError(t, err)

		rev, err := svc.Review(ctx, a.ID, student, false)
		require.NoError(t, err)
		assert.Equal(t, "Quiz", rev.ExamTitle)
		require.Len(t, rev.Questions, 2)
		assert.False(t, rev.Questions[0].Answered)
		assert.True(t, rev.Questions[1].Answered)
		assert.True(t, rev.Questions[1].IsCorrect)
		assert.Equal(t, "https://img.example/map.png", rev.Questions[1].ImageURL)
	})
}
