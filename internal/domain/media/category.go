package media

import "strings"

// Category is the coarse kind of an uploaded file. Only CategoryImage
// goes through the image transform step.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryOther    Category = "other"
)

var archiveMimeTypes = map[string]bool{
	"application/zip":              true,
	"application/x-rar-compressed": true,
	"application/x-tar":            true,
}

var documentMarkers = []string{"word", "document", "spreadsheet", "excel", "presentation", "powerpoint"}

func CategoryFromMime(mime string) Category {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return CategoryImage
	case strings.HasPrefix(mime, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mime, "audio/"):
		return CategoryAudio
	case strings.HasSuffix(mime, "pdf"), containsAny(mime, documentMarkers):
		return CategoryDocument
	case archiveMimeTypes[mime]:
		return CategoryArchive
	default:
		return CategoryOther
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
