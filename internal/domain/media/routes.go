package media

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the media endpoints on an authenticated group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	media := r.Group("/media")
	{
		media.POST("", h.Upload)
		media.GET("", h.List)
		media.POST("/bulk-delete", h.BulkDelete)
		media.GET("/:id", h.GetByID)
		media.GET("/:id/url", h.URL)
		media.PATCH("/:id", h.Update)
		media.DELETE("/:id", h.Delete)
	}
}
