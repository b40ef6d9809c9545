// Package handler exposes the services over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"learncenter/internal/accesscode"
	"learncenter/internal/achievement"
	"learncenter/internal/apperr"
	"learncenter/internal/attendance"
	"learncenter/internal/auth"
	"learncenter/internal/cloudinary"
	"learncenter/internal/exam"
	"learncenter/internal/logger"
	"learncenter/internal/realtime"
	"learncenter/internal/user"
)

// Uploader stores question images and returns where they live.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, filename string) (*cloudinary.UploadResult, error)
}

// Validator checks tagged input structs.
type Validator interface {
	Struct(s interface{}) error
}

// Handler holds the services the routes call into.
type Handler struct {
	Users        *user.Service
	Recorder     *attendance.Recorder
	Dashboard    *attendance.Dashboard
	Exams        *exam.Service
	Codes        *accesscode.Service
	Achievements achievement.Provider
	Uploader     Uploader // nil when image storage is not configured
	Hub          *realtime.Hub
	Validate     Validator
	Log          *logger.Logger
	QRSize       int
	Health       func(ctx context.Context) map[string]bool
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindAmbiguous:    http.StatusConflict,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindUnauthorized: http.StatusUnauthorized,
	apperr.KindForbidden:    http.StatusForbidden,
}

// fail writes err as {"error", "kind"[, "fields"]}. Internal errors are
// logged and their message hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		h.Log.Error("request failed", err, logger.Fields{"method": c.Request.Method, "path": c.FullPath()})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": apperr.KindInternal})
		return
	}
	body := gin.H{"error": err.Error(), "kind": kind}
	var aerr *apperr.Error
	if errors.As(err, &aerr) && len(aerr.Fields) > 0 {
		fields := make(map[string]string, len(aerr.Fields))
		for _, f := range aerr.Fields {
			fields[f.Field] = f.Error
		}
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(status, body)
}

// bind decodes the JSON body into dst and validates it.
func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.Validation("request body is not valid JSON for this endpoint"))
		return false
	}
	if err := h.Validate.Struct(dst); err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

func (h *Handler) claims(c *gin.Context) auth.Claims {
	claims, _ := auth.ClaimsFrom(c)
	return claims
}

func staff(claims auth.Claims) bool {
	return user.Role(claims.Role).Staff()
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.ValidationFields("invalid query", apperr.FieldError{Field: key, Error: key + " must be a number"})
	}
	return n, nil
}

// queryDay parses a YYYY-MM-DD query parameter as a calendar day.
func queryDay(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(attendance.DayLayout, raw)
	if err != nil {
		return time.Time{}, apperr.ValidationFields("invalid query", apperr.FieldError{Field: key, Error: key + " must be a YYYY-MM-DD date"})
	}
	return d, nil
}

func queryBool(c *gin.Context, key string, def bool) bool {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func page(items interface{}, total, pageNo, limit int) gin.H {
	return gin.H{"data": items, "meta": gin.H{"total": total, "page": pageNo, "limit": limit}}
}

// Healthz reports dependency health; any failing dependency makes it 503.
func (h *Handler) Healthz(c *gin.Context) {
	deps := map[string]bool{}
	if h.Health != nil {
		deps = h.Health(c.Request.Context())
	}
	status := http.StatusOK
	for _, ok := range deps {
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "deps": deps})
}
