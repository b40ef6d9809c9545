package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learncenter/internal/accesscode"
	"learncenter/internal/apperr"
	"learncenter/internal/user"
)

// GenerateCodes creates a batch of access codes for a course.
func (h *Handler) GenerateCodes(c *gin.Context) {
	var req accesscode.GenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("request body is not valid JSON for this endpoint"))
		return
	}
	codes, err := h.Codes.Generate(c.Request.Context(), req, h.claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": codes})
}

type codeView struct {
	accesscode.Code
	State accesscode.State `json:"state"`
}

// ListCodes pages through codes filtered by course and state.
func (h *Handler) ListCodes(c *gin.Context) {
	f := accesscode.ListFilter{
		CourseID: c.Query("course_id"),
		State:    accesscode.State(c.Query("state")),
	}
	var err error
	if f.Page, err = queryInt(c, "page"); err != nil {
		h.fail(c, err)
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		h.fail(c, err)
		return
	}
	codes, total, err := h.Codes.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.now()
	views := make([]codeView, 0, len(codes))
	for _, code := range codes {
		views = append(views, codeView{Code: code, State: code.State(now)})
	}
	_ = f.Normalize()
	c.JSON(http.StatusOK, page(views, total, f.Page, f.Limit))
}

// DeleteCode removes one code.
func (h *Handler) DeleteCode(c *gin.Context) {
	if err := h.Codes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required"`
}

// BulkDeleteCodes removes several codes at once.
func (h *Handler) BulkDeleteCodes(c *gin.Context) {
	var req bulkDeleteRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.Codes.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

type redeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// RedeemCode grants the caller access to the code's course.
func (h *Handler) RedeemCode(c *gin.Context) {
	var req redeemRequest
	if !h.bind(c, &req) {
		return
	}
	r, err := h.Codes.Redeem(c.Request.Context(), h.claims(c).Subject, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": r})
}

// CheckAccess reports whether the caller may open a course.
func (h *Handler) CheckAccess(c *gin.Context) {
	claims := h.claims(c)
	courseID := c.Param("courseId")
	ok, err := h.Codes.HasAccess(c.Request.Context(), claims.Subject, user.Role(claims.Role), courseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course_id": courseID, "has_access": ok})
}
