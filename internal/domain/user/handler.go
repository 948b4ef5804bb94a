package user

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"adminpanel/internal/domain/media"
	"adminpanel/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type userResponse struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Role               Role       `json:"role"`
	Status             Status     `json:"status"`
	Avatar             *string    `json:"avatar"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	AvatarThumbnailURL string     `json:"avatar_thumbnail_url,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

func (h *Handler) toResponse(c *gin.Context, u *User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.DeletedAt.Valid {
		t := u.DeletedAt.Time
		resp.DeletedAt = &t
	}
	if url, thumb, err := h.service.AvatarURLs(c.Request.Context(), u); err == nil {
		resp.AvatarURL, resp.AvatarThumbnailURL = url, thumb
	}
	return resp
}

func (h *Handler) toResponses(c *gin.Context, users []*User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, h.toResponse(c, u))
	}
	return out
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}
	u, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, u))
}

// UpdateAvatar takes multipart field "avatar".
func (h *Handler) UpdateAvatar(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "no avatar provided")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "failed to read avatar")
		return
	}
	defer f.Close()

	u, _, err := h.service.UpdateAvatar(c.Request.Context(), userID, media.File{
		Filename: fh.Filename,
		Size:     fh.Size,
		Reader:   f,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, u))
}

func (h *Handler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), filterFromQuery(c, false))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponses(c, users))
}

func (h *Handler) Trashed(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), filterFromQuery(c, true))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponses(c, users))
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}
	u, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, h.toResponse(c, u))
}

func (h *Handler) Show(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, u))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}
	u, err := h.service.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, u))
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.GetInt64("user_id"), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "user deleted")
}

func (h *Handler) Restore(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.service.Restore(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, u))
}

func (h *Handler) ForceDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.ForceDelete(c.Request.Context(), c.GetInt64("user_id"), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "user permanently deleted")
}

func (h *Handler) ToggleStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.service.ToggleStatus(c.Request.Context(), c.GetInt64("user_id"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, u))
}

func filterFromQuery(c *gin.Context, trashed bool) ListFilter {
	return ListFilter{
		Search:      c.Query("search"),
		Status:      Status(c.Query("status")),
		Role:        Role(c.Query("role")),
		OnlyTrashed: trashed,
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "invalid user id")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrEmailTaken):
		response.Error(c, http.StatusConflict, "EMAIL_TAKEN", err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrPasswordTooWeak):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrSelfAction):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	default:
		media.WriteError(c, err)
	}
}

func mustUserID(c *gin.Context) int64 {
	id := c.GetInt64("user_id")
	if id == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	}
	return id
}
