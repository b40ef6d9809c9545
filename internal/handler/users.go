package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learncenter/internal/apperr"
	"learncenter/internal/auth"
	"learncenter/internal/identity"
	"learncenter/internal/user"
)

type loginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func tokenBody(pair auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	}
}

// Login exchanges a phone/password pair for tokens.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	u, pair, err := h.Users.Login(c.Request.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := tokenBody(pair)
	body["user"] = u
	c.JSON(http.StatusOK, body)
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.Users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenBody(pair))
}

// Me returns the caller's directory entry.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), h.claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

// CreateUser adds a user (admins only).
func (h *Handler) CreateUser(c *gin.Context) {
	var req user.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("request body is not valid JSON for this endpoint"))
		return
	}
	u, err := h.Users.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": u})
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetUserActive soft-deletes or restores a user.
func (h *Handler) SetUserActive(c *gin.Context) {
	var req activeRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Users.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

// selfOrStaff lets staff see anyone and everyone else only themselves.
func (h *Handler) selfOrStaff(c *gin.Context) bool {
	claims := h.claims(c)
	if staff(claims) || claims.Subject == c.Param("id") {
		return true
	}
	h.fail(c, apperr.Forbidden("you may only view your own profile"))
	return false
}

// GetUser returns one user.
func (h *Handler) GetUser(c *gin.Context) {
	if !h.selfOrStaff(c) {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

// UserQR renders the user's attendance QR code as a PNG.
func (h *Handler) UserQR(c *gin.Context) {
	if !h.selfOrStaff(c) {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !u.Active {
		h.fail(c, apperr.NotFound("user %s not found", u.ID))
		return
	}
	size, err := queryInt(c, "size")
	if err != nil {
		h.fail(c, err)
		return
	}
	if size <= 0 || size > 1024 {
		size = h.QRSize
	}
	png, err := identity.EncodeQR(u, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
