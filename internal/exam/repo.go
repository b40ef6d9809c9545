package exam

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"learncenter/internal/apperr"
	"learncenter/internal/store"
)

// Repository persists exams and attempts in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO exams (id, course_id, title, questions, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, e.ID, e.CourseID, e.Title, e.Questions, e.CreatedBy).Scan(&e.CreatedAt)
	return e, errors.Wrap(err, "insert exam")
}

func (r *Repository) GetExam(ctx context.Context, id string) (Exam, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Exam{}, apperr.NotFound("exam %s not found", id)
	}
	var e Exam
	err := r.db.GetContext(ctx, &e, `
		SELECT id, course_id, title, questions, created_by, created_at
		FROM exams WHERE id = $1
	`, id)
	if store.IsNoRows(err) {
		return Exam{}, apperr.NotFound("exam %s not found", id)
	}
	return e, errors.Wrap(err, "select exam")
}

func (r *Repository) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exam_attempts (id, user_id, exam_id, answers, correct_count, total_questions, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.UserID, a.ExamID, a.Answers, a.CorrectCount, a.TotalQuestions, a.SubmittedAt)
	return a, errors.Wrap(err, "insert attempt")
}

func (r *Repository) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Attempt{}, apperr.NotFound("attempt %s not found", id)
	}
	var a Attempt
	err := r.db.GetContext(ctx, &a, `
		SELECT id, user_id, exam_id, answers, correct_count, total_questions, submitted_at
		FROM exam_attempts WHERE id = $1
	`, id)
	if store.IsNoRows(err) {
		return Attempt{}, apperr.NotFound("attempt %s not found", id)
	}
	return a, errors.Wrap(err, "select attempt")
}

func (r *Repository) ListAttempts(ctx context.Context, userID string) ([]Attempt, error) {
	res := []Attempt{}
	err := r.db.SelectContext(ctx, &res, `
		SELECT id, user_id, exam_id, answers, correct_count, total_questions, submitted_at
		FROM exam_attempts WHERE user_id = $1
		ORDER BY submitted_at DESC
	`, userID)
	return res, errors.Wrap(err, "select attempts")
}
