package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"learncenter/internal/achievement"
	"learncenter/internal/apperr"
	"learncenter/internal/logger"
)

const maxUploadBytes = 10 << 20

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// ListAchievements lists the caller's badges. Provider failures degrade to an
// empty list.
func (h *Handler) ListAchievements(c *gin.Context) {
	subject := h.claims(c).Subject
	items, err := h.Achievements.ForUser(c.Request.Context(), subject)
	if err != nil {
		h.Log.Warn("achievements unavailable", err, logger.Fields{"user_id": subject})
		items = nil
	}
	if items == nil {
		items = []achievement.Achievement{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Upload stores a question image and returns its public URL.
func (h *Handler) Upload(c *gin.Context) {
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured", "kind": "unavailable"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		h.fail(c, apperr.ValidationFields("invalid input", apperr.FieldError{Field: "file", Error: "file is required"}))
		return
	}
	if !imageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
		h.fail(c, apperr.ValidationFields("invalid input", apperr.FieldError{Field: "file", Error: "file must be a png, jpeg, gif or webp image"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	res, err := h.Uploader.Upload(c.Request.Context(), f, fh.Filename)
	if err != nil {
		h.Log.Error("image upload failed", err, logger.Fields{"filename": fh.Filename})
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed", "kind": "upstream"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": res})
}
