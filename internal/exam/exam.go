package exam

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Question is one multiple-choice question. CorrectAnswer is a 0-based
// index into Options.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
}

// Answer is the recorded answer to one question of an attempt.
type Answer struct {
	QuestionIndex  int  `json:"question_index"`
	SelectedAnswer int  `json:"selected_answer"`
	IsCorrect      bool `json:"is_correct"`
}

// Questions is stored as a JSON document.
type Questions []Question

func (q Questions) Value() (driver.Value, error) { return jsonValue(q) }
func (q *Questions) Scan(src interface{}) error  { return jsonScan(src, q) }

// Answers is stored as a JSON document.
type Answers []Answer

func (a Answers) Value() (driver.Value, error) { return jsonValue(a) }
func (a *Answers) Scan(src interface{}) error  { return jsonScan(src, a) }

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return errors.Errorf("cannot scan %T into %T", src, dst)
}

// Exam is a course exam.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	Questions Questions `db:"questions" json:"questions"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PublicQuestion is a question as shown to a student taking the exam.
type PublicQuestion struct {
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	ImageURL string   `json:"image_url,omitempty"`
}

// PublicExam hides correct answers and explanations.
type PublicExam struct {
	ID        string           `json:"id"`
	CourseID  string           `json:"course_id"`
	Title     string           `json:"title"`
	Questions []PublicQuestion `json:"questions"`
}

// Public strips the answer key.
func (e Exam) Public() PublicExam {
	qs := make([]PublicQuestion, 0, len(e.Questions))
	for _, q := range e.Questions {
		qs = append(qs, PublicQuestion{Text: q.Text, Options: q.Options, ImageURL: q.ImageURL})
	}
	return PublicExam{ID: e.ID, CourseID: e.CourseID, Title: e.Title, Questions: qs}
}

// Attempt is a submitted exam. It is never modified after creation.
type Attempt struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	ExamID         string    `db:"exam_id" json:"exam_id"`
	Answers        Answers   `db:"answers" json:"answers"`
	CorrectCount   int       `db:"correct_count" json:"correct_count"`
	TotalQuestions int       `db:"total_questions" json:"total_questions"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submitted_at"`
}

// Store persists exams and attempts.
type Store interface {
	CreateExam(ctx context.Context, e Exam) (Exam, error)
	GetExam(ctx context.Context, id string) (Exam, error)
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, userID string) ([]Attempt, error)
}
