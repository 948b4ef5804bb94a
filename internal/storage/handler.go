package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"adminpanel/internal/pkg/response"
)

// FileServer serves blobs from local disks. Disks not listed as public
// require a valid signed URL.
type FileServer struct {
	disks  *Manager
	signer *Signer
	public map[string]bool
}

func NewFileServer(disks *Manager, signer *Signer, publicDisks ...string) *FileServer {
	public := make(map[string]bool, len(publicDisks))
	for _, name := range publicDisks {
		public[name] = true
	}
	return &FileServer{disks: disks, signer: signer, public: public}
}

// RegisterRoutes mounts GET /files/:disk/*path.
func (s *FileServer) RegisterRoutes(r gin.IRouter) {
	r.GET("/files/:disk/*path", s.Serve)
	r.HEAD("/files/:disk/*path", s.Serve)
}

func (s *FileServer) Serve(c *gin.Context) {
	diskName := c.Param("disk")
	disk, err := s.disks.Disk(diskName)
	if err != nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}

	p, err := CleanPath(strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_PATH", "invalid file path")
		return
	}

	if !s.public[diskName] {
		err := s.signer.Verify(diskName, p, c.Query("expires"), c.Query("signature"))
		switch {
		case errors.Is(err, ErrSignatureExpired):
			response.Error(c, http.StatusForbidden, "URL_EXPIRED", "link has expired")
			return
		case err != nil:
			response.Error(c, http.StatusForbidden, "INVALID_SIGNATURE", "invalid link signature")
			return
		}
	}

	abs, err := disk.Path(p)
	if errors.Is(err, ErrNotLocal) {
		c.Redirect(http.StatusTemporaryRedirect, disk.URL(p))
		return
	}
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_PATH", "invalid file path")
		return
	}

	exists, err := disk.Exists(c.Request.Context(), p)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to read file")
		return
	}
	if !exists {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}

	// The content type comes from the bytes, never from the file name.
	mt, err := mimetype.DetectFile(abs)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to read file")
		return
	}
	c.Header("Content-Type", mt.String())
	c.Header("X-Content-Type-Options", "nosniff")

	if !s.public[diskName] {
		c.Header("Cache-Control", "private, no-store")
	} else {
		c.Header("Cache-Control", "public, max-age=86400")
	}
	c.File(abs)
}
