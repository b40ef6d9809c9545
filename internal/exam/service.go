package exam

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"learncenter/internal/apperr"
)

// CreateInput is a new exam as authored by staff.
type CreateInput struct {
	CourseID  string     `json:"course_id" validate:"required"`
	Title     string     `json:"title" validate:"required,max=200"`
	Questions []Question `json:"questions" validate:"required,min=1,dive"`
}

// Submission is a student's pick for one question.
type Submission struct {
	QuestionIndex  int `json:"question_index" validate:"min=0"`
	SelectedAnswer int `json:"selected_answer" validate:"min=0"`
}

// Review is an attempt replayed against its exam.
type Review struct {
	Attempt   Attempt          `json:"attempt"`
	ExamTitle string           `json:"exam_title"`
	Questions []QuestionReview `json:"questions"`
}

// Validator checks tagged input structs.
type Validator interface {
	Struct(s interface{}) error
}

// Service manages exams and immutable attempt results.
type Service struct {
	store    Store
	validate Validator
	now      func() time.Time
}

// NewService creates the exam service.
func NewService(store Store, validate Validator) *Service {
	return &Service{store: store, validate: validate, now: time.Now}
}

// CreateExam stores a new exam after checking every question is answerable.
func (s *Service) CreateExam(ctx context.Context, in CreateInput, createdBy string) (Exam, error) {
	if err := s.validate.Struct(in); err != nil {
		return Exam{}, err
	}
	for i, q := range in.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return Exam{}, apperr.Validation("question %d has no text", i)
		}
		if len(q.Options) < 2 {
			return Exam{}, apperr.Validation("question %d needs at least two options", i)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return Exam{}, apperr.Validation("question %d: correct answer %d is not an option", i, q.CorrectAnswer)
		}
	}
	return s.store.CreateExam(ctx, Exam{
		ID:        uuid.NewString(),
		CourseID:  strings.TrimSpace(in.CourseID),
		Title:     strings.TrimSpace(in.Title),
		Questions: in.Questions,
		CreatedBy: createdBy,
	})
}

// GetExam returns an exam with its answer key.
func (s *Service) GetExam(ctx context.Context, id string) (Exam, error) {
	return s.store.GetExam(ctx, id)
}

// SubmitAttempt scores the submissions and stores one attempt. Unanswered
// questions count as wrong.
func (s *Service) SubmitAttempt(ctx context.Context, userID, examID string, subs []Submission) (Attempt, error) {
	for _, sub := range subs {
		if err := s.validate.Struct(sub); err != nil {
			return Attempt{}, err
		}
	}
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return Attempt{}, err
	}

	seen := make(map[int]bool, len(subs))
	answers := make(Answers, 0, len(subs))
	correct := 0
	for _, sub := range subs {
		if sub.QuestionIndex >= len(e.Questions) {
			return Attempt{}, apperr.Validation("exam has no question %d", sub.QuestionIndex)
		}
		if seen[sub.QuestionIndex] {
			return Attempt{}, apperr.Validation("question %d answered twice", sub.QuestionIndex)
		}
		seen[sub.QuestionIndex] = true

		q := e.Questions[sub.QuestionIndex]
		ok := sub.SelectedAnswer == ClampCorrect(q.CorrectAnswer, len(q.Options))
		if ok {
			correct++
		}
		answers = append(answers, Answer{
			QuestionIndex:  sub.QuestionIndex,
			SelectedAnswer: sub.SelectedAnswer,
			IsCorrect:      ok,
		})
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })

	return s.store.CreateAttempt(ctx, Attempt{
		ID:             uuid.NewString(),
		UserID:         userID,
		ExamID:         e.ID,
		Answers:        answers,
		CorrectCount:   correct,
		TotalQuestions: len(e.Questions),
		SubmittedAt:    s.now().UTC(),
	})
}

// ListAttempts returns a user's attempt history, newest first.
func (s *Service) ListAttempts(ctx context.Context, userID string) ([]Attempt, error) {
	return s.store.ListAttempts(ctx, userID)
}

// Review replays an attempt. Only its owner or staff may see it.
func (s *Service) Review(ctx context.Context, attemptID, viewerID string, staff bool) (Review, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Review{}, err
	}
	if !staff && a.UserID != viewerID {
		return Review{}, apperr.Forbidden("attempt belongs to another user")
	}
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return Review{}, err
	}
	return Review{
		Attempt:   a,
		ExamTitle: e.Title,
		Questions: Replay(e.Questions, a.Answers),
	}, nil
}
