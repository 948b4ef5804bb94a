package media

import "time"

const (
	DefaultDisk            = "public"
	DefaultMaxSizeBytes    = 10 * 1024 * 1024 // 10 MiB
	DefaultOptimizeQuality = 80
	DefaultMaxPixels       = 40_000_000
	DefaultThumbnailSize   = 200
	DefaultSignedURLTTL    = 24 * time.Hour
)

// DefaultAllowedMimeTypes is the allow-list used when neither Config nor
// UploadOptions name one.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
	"application/x-rar-compressed",
	"video/mp4",
	"video/mpeg",
	"audio/mpeg",
	"audio/wav",
}

// Config holds the process-wide pipeline defaults. It is passed to
// NewService; the pipeline never reads the environment itself.
type Config struct {
	AllowedMimeTypes []string
	MaxSizeBytes     int64
	// MaxPixels caps width*height of images entering the transform step.
	MaxPixels        int64
	DefaultDisk      string
	OptimizeQuality  int
	ThumbnailWidth   int
	ThumbnailHeight  int
	TransformWorkers int
	BatchConcurrency int
	SignedURLTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		AllowedMimeTypes: append([]string(nil), DefaultAllowedMimeTypes...),
		MaxSizeBytes:     DefaultMaxSizeBytes,
		MaxPixels:        DefaultMaxPixels,
		DefaultDisk:      DefaultDisk,
		OptimizeQuality:  DefaultOptimizeQuality,
		ThumbnailWidth:   DefaultThumbnailSize,
		ThumbnailHeight:  DefaultThumbnailSize,
		TransformWorkers: 4,
		BatchConcurrency: 4,
		SignedURLTTL:     DefaultSignedURLTTL,
	}
}

// normalize fills zero values from DefaultConfig.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if len(c.AllowedMimeTypes) == 0 {
		c.AllowedMimeTypes = def.AllowedMimeTypes
	}
	if c.MaxSizeBytes <= 0 {
		c.MaxSizeBytes = def.MaxSizeBytes
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = def.MaxPixels
	}
	if c.DefaultDisk == "" {
		c.DefaultDisk = def.DefaultDisk
	}
	if c.OptimizeQuality <= 0 || c.OptimizeQuality > 100 {
		c.OptimizeQuality = def.OptimizeQuality
	}
	if c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0 {
		c.ThumbnailWidth, c.ThumbnailHeight = def.ThumbnailWidth, def.ThumbnailHeight
	}
	if c.TransformWorkers <= 0 {
		c.TransformWorkers = def.TransformWorkers
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = def.BatchConcurrency
	}
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = def.SignedURLTTL
	}
	return c
}
