package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learncenter/internal/apperr"
	"learncenter/internal/exam"
	"learncenter/internal/user"
)

// CreateExam stores a new exam (staff only).
func (h *Handler) CreateExam(c *gin.Context) {
	var req exam.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("request body is not valid JSON for this endpoint"))
		return
	}
	e, err := h.Exams.CreateExam(c.Request.Context(), req, h.claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": e})
}

// courseAccess loads the exam and checks that a student caller has access to
// its course.
func (h *Handler) courseAccess(c *gin.Context, examID string) (exam.Exam, bool) {
	e, err := h.Exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		h.fail(c, err)
		return exam.Exam{}, false
	}
	claims := h.claims(c)
	ok, err := h.Codes.HasAccess(c.Request.Context(), claims.Subject, user.Role(claims.Role), e.CourseID)
	if err != nil {
		h.fail(c, err)
		return exam.Exam{}, false
	}
	if !ok {
		h.fail(c, apperr.Forbidden("no access to course %s", e.CourseID))
		return exam.Exam{}, false
	}
	return e, true
}

// GetExam returns an exam. Students get it without the answer key.
func (h *Handler) GetExam(c *gin.Context) {
	e, ok := h.courseAccess(c, c.Param("id"))
	if !ok {
		return
	}
	if staff(h.claims(c)) {
		c.JSON(http.StatusOK, gin.H{"data": e})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": e.Public()})
}

type submitRequest struct {
	Answers []exam.Submission `json:"answers" validate:"required,dive"`
}

// SubmitAttempt scores and stores the caller's answers.
func (h *Handler) SubmitAttempt(c *gin.Context) {
	var req submitRequest
	if !h.bind(c, &req) {
		return
	}
	e, ok := h.courseAccess(c, c.Param("id"))
	if !ok {
		return
	}
	a, err := h.Exams.SubmitAttempt(c.Request.Context(), h.claims(c).Subject, e.ID, req.Answers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": a})
}

// ListAttempts returns the caller's exam history.
func (h *Handler) ListAttempts(c *gin.Context) {
	attempts, err := h.Exams.ListAttempts(c.Request.Context(), h.claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	if attempts == nil {
		attempts = []exam.Attempt{}
	}
	c.JSON(http.StatusOK, gin.H{"data": attempts})
}

// ReviewAttempt replays one attempt for its owner or staff.
func (h *Handler) ReviewAttempt(c *gin.Context) {
	claims := h.claims(c)
	rv, err := h.Exams.Review(c.Request.Context(), c.Param("id"), claims.Subject, staff(claims))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rv})
}
