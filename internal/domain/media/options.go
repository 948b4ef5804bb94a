package media

import (
	"fmt"
	"io"
	"strings"
	"time"

	"adminpanel/internal/pkg/validator"
	"adminpanel/internal/storage"
)

type ResizeMethod string

const (
	// ResizeFit crops to fill the target box exactly.
	ResizeFit ResizeMethod = "fit"
	// ResizeScale scales to the target box without cropping.
	ResizeScale ResizeMethod = "resize"
)

type Resize struct {
	Width  int          `validate:"gt=0,lte=8000"`
	Height int          `validate:"gt=0,lte=8000"`
	Method ResizeMethod `validate:"omitempty,oneof=fit resize"`
}

type Dimensions struct {
	Width  int `validate:"gt=0,lte=2000"`
	Height int `validate:"gt=0,lte=2000"`
}

// UploadOptions tunes a single upload. Start from DefaultUploadOptions so
// OptimizeImage keeps its default of true; zero-valued fields fall back to
// the service Config.
type UploadOptions struct {
	Disk         string `validate:"omitempty,max=32"`
	Directory    string `validate:"omitempty,max=255"`
	MaxSizeBytes int64  `validate:"gte=0"`
	Collection   string `validate:"omitempty,max=64"`

	AllowedMimeTypes  []string
	OptimizeImage     bool
	GenerateThumbnail bool
	ExtraMetadata     map[string]any

	ResizeDimensions    *Resize `validate:"omitempty"`
	ThumbnailDimensions Dimensions

	// ConvertFormat re-encodes images into another format (jpg, png, gif, bmp, tiff).
	ConvertFormat string `validate:"omitempty,oneof=jpg jpeg png gif bmp tif tiff"`
}

func DefaultUploadOptions() UploadOptions {
	return UploadOptions{OptimizeImage: true}
}

// AvatarUploadOptions is the preset used for profile pictures.
func AvatarUploadOptions() UploadOptions {
	opts := DefaultUploadOptions()
	opts.Collection = "avatars"
	opts.ResizeDimensions = &Resize{Width: 400, Height: 400, Method: ResizeFit}
	opts.GenerateThumbnail = true
	opts.ThumbnailDimensions = Dimensions{Width: 200, Height: 200}
	opts.AllowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	return opts
}

func (o UploadOptions) withDefaults(cfg Config) UploadOptions {
	if o.Disk == "" {
		o.Disk = cfg.DefaultDisk
	}
	if len(o.AllowedMimeTypes) == 0 {
		o.AllowedMimeTypes = cfg.AllowedMimeTypes
	}
	if o.MaxSizeBytes == 0 {
		o.MaxSizeBytes = cfg.MaxSizeBytes
	}
	if o.ThumbnailDimensions.Width == 0 && o.ThumbnailDimensions.Height == 0 {
		o.ThumbnailDimensions = Dimensions{Width: cfg.ThumbnailWidth, Height: cfg.ThumbnailHeight}
	}
	if o.ResizeDimensions != nil && o.ResizeDimensions.Method == "" {
		r := *o.ResizeDimensions
		r.Method = ResizeFit
		o.ResizeDimensions = &r
	}
	o.ConvertFormat = strings.ToLower(strings.TrimPrefix(o.ConvertFormat, "."))
	return o
}

func (o UploadOptions) validate() error {
	if fields := validator.Validate(o); fields != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, fields)
	}
	for k := range o.ExtraMetadata {
		if reservedMetadata[k] {
			return fmt.Errorf("%w: metadata key %q is reserved", ErrInvalidOptions, k)
		}
	}
	if o.Directory != "" {
		if _, err := storage.CleanPath(o.Directory); err != nil {
			return fmt.Errorf("%w: directory %q", ErrInvalidOptions, o.Directory)
		}
	}
	return nil
}

func (o UploadOptions) allows(mime string) bool {
	for _, allowed := range o.AllowedMimeTypes {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

// File is one incoming upload. MimeType may be left empty, in which case
// the content is sniffed.
type File struct {
	Filename string
	Size     int64
	MimeType string
	Reader   io.Reader
}

type BatchPolicy int

const (
	ContinueOnError BatchPolicy = iota
	StopOnError
)

// Result is the outcome for one file of a batch upload.
type Result struct {
	Media *Media
	Err   error
}

type URLOptions struct {
	Signed    bool
	ExpiresAt time.Time
}

type DeleteOutcome struct {
	ID      string
	Deleted bool
	Err     error
}
