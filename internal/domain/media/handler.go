package media

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"adminpanel/internal/pkg/response"
)

// Handler exposes the pipeline over HTTP. Any authenticated user can
// upload; only the uploader or an admin can read, edit or delete a record.
type Handler struct {
	service      *Service
	privateDisks map[string]bool
}

// NewHandler builds a handler. URLs of records stored on privateDisks are
// returned signed.
func NewHandler(service *Service, privateDisks ...string) *Handler {
	private := make(map[string]bool, len(privateDisks))
	for _, d := range privateDisks {
		private[d] = true
	}
	return &Handler{service: service, privateDisks: private}
}

type mediaResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Disk         string         `json:"disk"`
	MimeType     string         `json:"mime_type"`
	Extension    string         `json:"extension"`
	Size         int64          `json:"size"`
	Category     Category       `json:"category"`
	UploadedBy   int64          `json:"uploaded_by"`
	Collection   *string        `json:"collection"`
	Alt          *string        `json:"alt"`
	Title        *string        `json:"title"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type resultResponse struct {
	Filename string         `json:"filename"`
	Media    *mediaResponse `json:"media,omitempty"`
	Error    *errorBody     `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=100,dive,required"`
}

type deleteOutcomeResponse struct {
	ID      string     `json:"id"`
	Deleted bool       `json:"deleted"`
	Error   *errorBody `json:"error,omitempty"`
}

// Upload accepts multipart "file" (single) or "files" (batch). Batch
// requests use on_error=stop|continue (default continue).
func (h *Handler) Upload(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "multipart form expected")
		return
	}

	opts, err := uploadOptionsFromForm(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if headers := form.File["files"]; len(headers) > 0 {
		h.uploadBatch(c, userID, headers, opts)
		return
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "no file provided")
		return
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "failed to read file")
		return
	}
	defer f.Close()

	m, err := h.service.Upload(c.Request.Context(), File{Filename: fh.Filename, Size: fh.Size, Reader: f}, userID, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, h.toResponse(c, m))
}

func (h *Handler) uploadBatch(c *gin.Context, userID int64, headers []*multipart.FileHeader, opts UploadOptions) {
	policy := ContinueOnError
	if strings.EqualFold(c.PostForm("on_error"), "stop") {
		policy = StopOnError
	}

	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "failed to read file "+fh.Filename)
			return
		}
		defer f.Close()
		files = append(files, File{Filename: fh.Filename, Size: fh.Size, Reader: f})
	}

	results := h.service.UploadMany(c.Request.Context(), files, userID, opts, policy)

	items := make([]resultResponse, 0, len(results))
	failed := 0
	for i, r := range results {
		item := resultResponse{Filename: headers[i].Filename}
		if r.Err != nil {
			failed++
			_, code, msg := classify(r.Err)
			item.Error = &errorBody{Code: code, Message: msg}
		} else {
			item.Media = h.toResponse(c, r.Media)
		}
		items = append(items, item)
	}

	status := http.StatusCreated
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	response.Success(c, status, gin.H{"items": items, "uploaded": len(items) - failed, "failed": failed})
}

// List returns the caller's media, newest first. Admins may pass owner_id,
// or only collection to list a whole collection.
func (h *Handler) List(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}
	collection := c.Query("collection")

	var (
		items []*Media
		err   error
	)
	switch {
	case isAdmin(c) && c.Query("owner_id") == "" && collection != "":
		items, err = h.service.ListByCollection(c.Request.Context(), collection)
	default:
		owner := userID
		if raw := c.Query("owner_id"); raw != "" && isAdmin(c) {
			owner, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || owner <= 0 {
				response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid owner_id")
				return
			}
		}
		items, err = h.service.ListByOwner(c.Request.Context(), owner, collection)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]*mediaResponse, 0, len(items))
	for _, m := range items {
		out = append(out, h.toResponse(c, m))
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) GetByID(c *gin.Context) {
	m, ok := h.loadOwned(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, m))
}

// URL returns a public or signed URL. Query: signed=true, expires_in=1h.
func (h *Handler) URL(c *gin.Context) {
	m, ok := h.loadOwned(c)
	if !ok {
		return
	}

	opts := URLOptions{Signed: c.Query("signed") == "true" || h.privateDisks[m.Disk]}
	if raw := c.Query("expires_in"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid expires_in")
			return
		}
		opts.Signed = true
		opts.ExpiresAt = time.Now().Add(d)
	}

	url, err := h.service.URL(c.Request.Context(), m, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	data := gin.H{"url": url, "signed": opts.Signed}
	if opts.Signed {
		exp := opts.ExpiresAt
		if exp.IsZero() {
			exp = time.Now().Add(h.service.Config().SignedURLTTL)
		}
		data["expires_at"] = exp.UTC()
	}
	response.Success(c, http.StatusOK, data)
}

func (h *Handler) Update(c *gin.Context) {
	m, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var changes map[string]any
	if err := c.ShouldBindJSON(&changes); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
		return
	}

	updated, err := h.service.Update(c.Request.Context(), m.ID, changes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.toResponse(c, updated))
}

func (h *Handler) Delete(c *gin.Context) {
	m, ok := h.loadOwned(c)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), m)
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		writeError(c, ErrMediaNotFound)
		return
	}
	response.Message(c, http.StatusOK, "deleted")
}

// BulkDelete deletes each id independently. Ids the caller does not own
// are reported as failures rather than failing the whole request.
func (h *Handler) BulkDelete(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "ids must list 1 to 100 media ids")
		return
	}

	ctx := c.Request.Context()
	outcomes := make([]DeleteOutcome, len(req.IDs))
	var allowed []string
	var positions []int
	for i, id := range req.IDs {
		outcomes[i] = DeleteOutcome{ID: id}
		if !isAdmin(c) {
			m, err := h.service.Find(ctx, id)
			if errors.Is(err, ErrMediaNotFound) {
				continue
			}
			if err != nil {
				outcomes[i].Err = err
				continue
			}
			if m.UploadedBy != userID {
				outcomes[i].Err = ErrNotOwner
				continue
			}
		}
		allowed = append(allowed, id)
		positions = append(positions, i)
	}

	for j, o := range h.service.BulkDeleteOutcomes(ctx, allowed) {
		outcomes[positions[j]] = o
	}

	deleted := 0
	items := make([]deleteOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		item := deleteOutcomeResponse{ID: o.ID, Deleted: o.Deleted}
		if o.Deleted {
			deleted++
		}
		if o.Err != nil {
			_, code, msg := classify(o.Err)
			item.Error = &errorBody{Code: code, Message: msg}
		}
		items = append(items, item)
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted, "results": items})
}

func (h *Handler) loadOwned(c *gin.Context) (*Media, bool) {
	userID := mustUserID(c)
	if userID == 0 {
		return nil, false
	}
	m, err := h.service.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if m.UploadedBy != userID && !isAdmin(c) {
		writeError(c, ErrNotOwner)
		return nil, false
	}
	return m, true
}

func (h *Handler) toResponse(c *gin.Context, m *Media) *mediaResponse {
	ctx := c.Request.Context()
	opts := URLOptions{Signed: h.privateDisks[m.Disk]}
	url, _ := h.service.URL(ctx, m, opts)
	thumb, _ := h.service.ThumbnailURL(ctx, m, opts)

	return &mediaResponse{
		ID:           m.ID,
		Name:         m.Name,
		URL:          url,
		ThumbnailURL: thumb,
		Disk:         m.Disk,
		MimeType:     m.MimeType,
		Extension:    m.Extension,
		Size:         m.Size,
		Category:     m.Category(),
		UploadedBy:   m.UploadedBy,
		Collection:   m.Collection,
		Alt:          m.Alt,
		Title:        m.Title,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// uploadOptionsFromForm reads: disk, collection, optimize, thumbnail,
// thumbnail_width, thumbnail_height, width, height, method, convert_format.
func uploadOptionsFromForm(c *gin.Context) (UploadOptions, error) {
	opts := DefaultUploadOptions()
	opts.Disk = c.PostForm("disk")
	opts.Collection = c.PostForm("collection")
	opts.ConvertFormat = c.PostForm("convert_format")

	var err error
	if opts.OptimizeImage, err = formBool(c, "optimize", true); err != nil {
		return opts, err
	}
	if opts.GenerateThumbnail, err = formBool(c, "thumbnail", false); err != nil {
		return opts, err
	}
	if opts.ThumbnailDimensions.Width, err = formInt(c, "thumbnail_width"); err != nil {
		return opts, err
	}
	if opts.ThumbnailDimensions.Height, err = formInt(c, "thumbnail_height"); err != nil {
		return opts, err
	}

	width, err := formInt(c, "width")
	if err != nil {
		return opts, err
	}
	height, err := formInt(c, "height")
	if err != nil {
		return opts, err
	}
	if width > 0 || height > 0 {
		opts.ResizeDimensions = &Resize{Width: width, Height: height, Method: ResizeMethod(c.PostForm("method"))}
	}
	return opts, nil
}

func formBool(c *gin.Context, key string, def bool) (bool, error) {
	raw := c.PostForm(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, errors.New("invalid " + key)
	}
	return v, nil
}

func formInt(c *gin.Context, key string) (int, error) {
	raw := c.PostForm(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrInvalidFileType):
		return http.StatusUnsupportedMediaType, "INVALID_FILE_TYPE", ErrInvalidFileType.Error()
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ErrFileTooLarge.Error()
	case errors.Is(err, ErrEmptyFile):
		return http.StatusBadRequest, "EMPTY_FILE", ErrEmptyFile.Error()
	case errors.Is(err, ErrInvalidOptions), errors.Is(err, ErrInvalidUpdate):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, ErrImageDecodeFailed):
		return http.StatusUnprocessableEntity, "IMAGE_DECODE_FAILED", ErrImageDecodeFailed.Error()
	case errors.Is(err, ErrMediaNotFound):
		return http.StatusNotFound, "NOT_FOUND", ErrMediaNotFound.Error()
	case errors.Is(err, ErrNotOwner):
		return http.StatusForbidden, "FORBIDDEN", ErrNotOwner.Error()
	case errors.Is(err, ErrMediaInUse):
		return http.StatusConflict, "MEDIA_IN_USE", ErrMediaInUse.Error()
	case errors.Is(err, ErrBatchAborted):
		return http.StatusConflict, "BATCH_ABORTED", ErrBatchAborted.Error()
	case errors.Is(err, ErrStorageWriteFailed), errors.Is(err, ErrStorageDeleteFailed):
		return http.StatusInternalServerError, "STORAGE_ERROR", "storage operation failed"
	case errors.Is(err, ErrMetadataPersistFailed):
		return http.StatusInternalServerError, "DATABASE_ERROR", "failed to save media"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}

// writeError maps pipeline errors to HTTP responses. It is also used by
// other handlers that call into the pipeline.
func writeError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Error(c, status, code, msg)
}

// WriteError is writeError for other packages.
func WriteError(c *gin.Context, err error) { writeError(c, err) }

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return 0
	}
	if v, ok := id.(int64); ok {
		return v
	}
	response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user id")
	return 0
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == "admin"
}
