package handler

import (
	"github.com/gin-gonic/gin"

	"learncenter/internal/auth"
	"learncenter/internal/user"
)

var (
	staffRoles = []string{string(user.RoleInstructor), string(user.RoleAdmin), string(user.RoleSuperAdmin)}
	adminRoles = []string{string(user.RoleAdmin), string(user.RoleSuperAdmin)}
)

// Register mounts the /v1 API and /healthz on r.
func (h *Handler) Register(r gin.IRouter, issuer auth.Issuer) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)

	authed := v1.Group("", auth.Bearer(issuer))
	staffOnly := auth.RequireRoles(staffRoles...)
	adminOnly := auth.RequireRoles(adminRoles...)

	authed.GET("/auth/me", h.Me)

	users := authed.Group("/users")
	users.POST("", adminOnly, h.CreateUser)
	users.PATCH("/:id/active", adminOnly, h.SetUserActive)
	users.GET("/:id", h.GetUser)
	users.GET("/:id/qr", h.UserQR)

	att := authed.Group("/attendance", staffOnly)
	att.POST("/scan-qr", h.ScanQR)
	att.POST("/take-by-phone", h.TakeByPhone)
	att.GET("", h.ListAttendance)
	att.GET("/dashboard", h.DashboardSummary)
	att.PUT("/:id", h.UpdateAttendance)
	att.DELETE("/:id", h.DeleteAttendance)
	if h.Hub != nil {
		att.GET("/ws", h.Hub.Handler())
	}

	exams := authed.Group("/exams")
	exams.POST("", staffOnly, h.CreateExam)
	exams.GET("/attempts", h.ListAttempts)
	exams.GET("/attempts/:id/review", h.ReviewAttempt)
	exams.GET("/:id", h.GetExam)
	exams.POST("/:id/attempts", h.SubmitAttempt)

	codes := authed.Group("/access-codes")
	codes.POST("/generate", staffOnly, h.GenerateCodes)
	codes.GET("", staffOnly, h.ListCodes)
	codes.DELETE("/:id", staffOnly, h.DeleteCode)
	codes.POST("/bulk-delete", staffOnly, h.BulkDeleteCodes)
	codes.POST("/redeem", h.RedeemCode)
	codes.GET("/check/:courseId", h.CheckAccess)

	authed.GET("/achievements", h.ListAchievements)
	authed.POST("/uploads", staffOnly, h.Upload)
}
