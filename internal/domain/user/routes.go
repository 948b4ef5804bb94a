package user

import (
	"github.com/gin-gonic/gin"

	"adminpanel/internal/middleware"
)

// RegisterRoutes mounts profile routes for any authenticated user and the
// user administration routes for admins.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	profile := r.Group("/profile")
	{
		profile.GET("", h.Me)
		profile.POST("/avatar", h.UpdateAvatar)
	}

	admin := r.Group("/admin/users", middleware.AdminOnly())
	{
		admin.GET("", h.List)
		admin.POST("", h.Create)
		admin.GET("/trashed", h.Trashed)
		admin.GET("/stats", h.Stats)
		admin.GET("/:id", h.Show)
		admin.PATCH("/:id", h.Update)
		admin.DELETE("/:id", h.Delete)
		admin.POST("/:id/restore", h.Restore)
		admin.DELETE("/:id/force", h.ForceDelete)
		admin.POST("/:id/toggle-status", h.ToggleStatus)
	}
}
