package memstore

import (
	"context"
	"sort"

	"learncenter/internal/apperr"
	"learncenter/internal/exam"
)

type examStore struct {
	db *DB
}

// NewExamStore returns exams and attempts backed by db.
func NewExamStore(db *DB) exam.Store {
	return &examStore{db: db}
}

func (s *examStore) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	e.CreatedAt = s.db.now().UTC()
	e.Questions = append(exam.Questions(nil), e.Questions...)
	s.db.exams[e.ID] = &e
	return e, nil
}

func (s *examStore) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if e, ok := s.db.exams[id]; ok {
		return *e, nil
	}
	return exam.Exam{}, apperr.NotFound("exam %s not found", id)
}

func (s *examStore) CreateAttempt(ctx context.Context, a exam.Attempt) (exam.Attempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	a.Answers = append(exam.Answers(nil), a.Answers...)
	s.db.attempts[a.ID] = &a
	return a, nil
}

func (s *examStore) GetAttempt(ctx context.Context, id string) (exam.Attempt, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if a, ok := s.db.attempts[id]; ok {
		return *a, nil
	}
	return exam.Attempt{}, apperr.NotFound("attempt %s not found", id)
}

func (s *examStore) ListAttempts(ctx context.Context, userID string) ([]exam.Attempt, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]exam.Attempt, 0)
	for _, a := range s.db.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}
