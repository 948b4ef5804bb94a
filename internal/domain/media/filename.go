package media

import (
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"adminpanel/internal/pkg/slug"
)

const rootDirectory = "media"

// splitName returns the original filename stem and its lowercased
// extension without the dot.
func splitName(filename string) (stem, ext string) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	if stem == "" && ext != "" {
		// ".env" style names have no stem.
		stem, ext = ext, ""
	}
	return strings.TrimSpace(stem), strings.ToLower(strings.TrimPrefix(ext, "."))
}

// extensionFor derives the stored extension from the detected MIME type.
// The client extension is kept only when it is registered for that type,
// so "photo.jpeg" stays jpeg while "invoice.html" holding a PDF becomes pdf.
func extensionFor(clientExt, mimeType string) string {
	canonical := ""
	if t := mimetype.Lookup(mimeType); t != nil {
		canonical = strings.TrimPrefix(t.Extension(), ".")
	}
	if clientExt != "" && (clientExt == canonical || registeredFor(clientExt, mimeType)) {
		return clientExt
	}
	if canonical != "" {
		return canonical
	}
	return "bin"
}

func registeredFor(ext, mimeType string) bool {
	byExt := mime.TypeByExtension("." + ext)
	if byExt == "" {
		return false
	}
	base, _, err := mime.ParseMediaType(byExt)
	return err == nil && base == mimeType
}

// generateFileName builds {unix}_{uuid}_{slug}.{ext}. The timestamp prefix
// keeps a directory listing in upload order; the UUID keeps names unique.
func generateFileName(now time.Time, stem, ext string) string {
	s := slug.From(stem)
	if s == "" {
		s = "file"
	}
	return fmt.Sprintf("%d_%s_%s.%s", now.Unix(), uuid.NewString(), s, ext)
}

// defaultDirectory partitions uploads by collection and month.
func defaultDirectory(now time.Time, collection string) string {
	parts := []string{rootDirectory}
	if c := slug.From(collection); c != "" {
		parts = append(parts, c)
	}
	now = now.UTC()
	parts = append(parts, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())))
	return path.Join(parts...)
}
