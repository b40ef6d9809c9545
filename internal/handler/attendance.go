package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"learncenter/internal/apperr"
	"learncenter/internal/attendance"
	"learncenter/internal/identity"
)

type contextFields struct {
	Type      string `json:"type" validate:"omitempty,oneof=course live_session general"`
	CourseID  string `json:"course_id" validate:"max=64"`
	SessionID string `json:"session_id" validate:"max=64"`
	Note      string `json:"note" validate:"max=500"`
	Location  string `json:"location" validate:"max=200"`
}

type scanRequest struct {
	// QR is the decoded payload; QRData is the raw scanned text.
	QR     *identity.QRPayload `json:"qr"`
	QRData string              `json:"qr_data"`
	Status string              `json:"status"`
	contextFields
}

type phoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
	UserID      string `json:"user_id"`
	Status      string `json:"status" validate:"required"`
	contextFields
}

func (h *Handler) recordInput(c *gin.Context, ids identity.Identifiers, status string, fields contextFields) attendance.RecordInput {
	return attendance.RecordInput{
		Identifiers: ids,
		Type:        attendance.Type(fields.Type),
		CourseID:    fields.CourseID,
		SessionID:   fields.SessionID,
		Status:      status,
		RecordedBy:  h.claims(c).Subject,
		Note:        fields.Note,
		Location:    fields.Location,
	}
}

// ScanQR records attendance for the user in a scanned QR code. A missing
// status means present.
func (h *Handler) ScanQR(c *gin.Context) {
	var req scanRequest
	if !h.bind(c, &req) {
		return
	}
	payload := req.QR
	if payload == nil {
		if req.QRData == "" {
			h.fail(c, apperr.ValidationFields("invalid input", apperr.FieldError{Field: "qr", Error: "qr or qr_data is required"}))
			return
		}
		p, err := identity.ParseQRPayload([]byte(req.QRData))
		if err != nil {
			h.fail(c, err)
			return
		}
		payload = &p
	}
	status := req.Status
	if status == "" {
		status = string(attendance.StatusPresent)
	}
	rec, err := h.Recorder.Record(c.Request.Context(), h.recordInput(c, identity.Identifiers{QR: payload}, status, req.contextFields))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": recordView(rec)})
}

// TakeByPhone records attendance by phone number and/or user id.
func (h *Handler) TakeByPhone(c *gin.Context) {
	var req phoneRequest
	if !h.bind(c, &req) {
		return
	}
	ids := identity.Identifiers{UserID: req.UserID, PhoneNumber: req.PhoneNumber}
	rec, err := h.Recorder.Record(c.Request.Context(), h.recordInput(c, ids, req.Status, req.contextFields))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": recordView(rec)})
}

// ListAttendance pages through records, newest first.
func (h *Handler) ListAttendance(c *gin.Context) {
	var (
		f   attendance.ListFilter
		err error
	)
	if f.From, err = queryDay(c, "from"); err != nil {
		h.fail(c, err)
		return
	}
	if f.To, err = queryDay(c, "to"); err != nil {
		h.fail(c, err)
		return
	}
	if f.Page, err = queryInt(c, "page"); err != nil {
		h.fail(c, err)
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		h.fail(c, err)
		return
	}
	if s := c.Query("status"); s != "" {
		if f.Status, err = attendance.ParseStatus(s); err != nil {
			h.fail(c, err)
			return
		}
	}
	f.CourseID = c.Query("course_id")
	f.SessionID = c.Query("session_id")
	if f.UserID = c.Query("user_id"); f.UserID != "" {
		if _, err := uuid.Parse(f.UserID); err != nil {
			h.fail(c, apperr.ValidationFields("invalid query", apperr.FieldError{Field: "user_id", Error: "user_id must be a UUID"}))
			return
		}
	}
	if f.Type = attendance.Type(c.Query("type")); f.Type != "" && !f.Type.Valid() {
		h.fail(c, apperr.ValidationFields("invalid query", apperr.FieldError{Field: "type", Error: "type must be one of course, live_session, general"}))
		return
	}

	recs, total, err := h.Recorder.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	f.Normalize()
	views := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		views = append(views, recordView(r))
	}
	c.JSON(http.StatusOK, page(views, total, f.Page, f.Limit))
}

// DashboardSummary summarizes attendance over a date range.
func (h *Handler) DashboardSummary(c *gin.Context) {
	var (
		f   attendance.DashboardFilter
		err error
	)
	if f.From, err = queryDay(c, "from"); err != nil {
		h.fail(c, err)
		return
	}
	if f.To, err = queryDay(c, "to"); err != nil {
		h.fail(c, err)
		return
	}
	f.CourseID = c.Query("course_id")
	f.IncludeRate = queryBool(c, "include_rate", true)
	f.Daily = queryBool(c, "daily", false)

	sum, err := h.Dashboard.Summary(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sum})
}

type updateRequest struct {
	Status   *string `json:"status"`
	Note     *string `json:"note" validate:"omitempty,max=500"`
	Location *string `json:"location" validate:"omitempty,max=200"`
}

// UpdateAttendance applies a staff edit.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req updateRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Status == nil && req.Note == nil && req.Location == nil {
		h.fail(c, apperr.Validation("nothing to update"))
		return
	}
	rec, err := h.Recorder.Update(c.Request.Context(), c.Param("id"), req.Status, req.Note, req.Location)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recordView(rec)})
}

// DeleteAttendance removes a record.
func (h *Handler) DeleteAttendance(c *gin.Context) {
	if err := h.Recorder.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recordView adds the calendar day, which Record keeps out of its JSON.
func recordView(r attendance.Record) gin.H {
	return gin.H{
		"id":          r.ID,
		"user_id":     r.UserID,
		"recorded_by": r.RecordedBy,
		"type":        r.Type,
		"status":      r.Status,
		"recorded_at": r.RecordedAt,
		"day":         r.DayString(),
		"note":        r.Note,
		"location":    r.Location,
		"course_id":   r.CourseID,
		"session_id":  r.SessionID,
		"updated_at":  r.UpdatedAt,
	}
}
