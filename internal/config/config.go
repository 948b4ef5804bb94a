package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"adminpanel/internal/domain/media"
	"adminpanel/internal/storage"
)

const (
	defaultJWTSecret  = "change-me-jwt-secret"
	defaultSigningKey = "change-me-media-signing-key"

	DriverLocal = "local"
	DriverS3    = "s3"
)

type Config struct {
	AppEnv      string   `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string   `env:"DATABASE_URL,notEmpty"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me-jwt-secret"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	MediaRoot           string        `env:"MEDIA_ROOT" envDefault:"./storage"`
	MediaBaseURL        string        `env:"MEDIA_BASE_URL" envDefault:"http://localhost:8080"`
	MediaSigningKey     string        `env:"MEDIA_SIGNING_KEY" envDefault:"change-me-media-signing-key"`
	MediaMaxSize        int64         `env:"MEDIA_MAX_SIZE" envDefault:"10485760"`
	MediaMaxPixels      int64         `env:"MEDIA_MAX_PIXELS" envDefault:"40000000"`
	MediaAllowedMime    []string      `env:"MEDIA_ALLOWED_MIME" envSeparator:","`
	MediaQuality        int           `env:"MEDIA_OPTIMIZE_QUALITY" envDefault:"80"`
	MediaWorkers        int           `env:"MEDIA_TRANSFORM_WORKERS" envDefault:"4"`
	MediaBatchSize      int           `env:"MEDIA_BATCH_CONCURRENCY" envDefault:"4"`
	MediaSignedURLTTL   time.Duration `env:"MEDIA_SIGNED_URL_TTL" envDefault:"24h"`
	MediaPrivateDriver  string        `env:"MEDIA_PRIVATE_DRIVER" envDefault:"local"`
	MediaSweepMinAge    time.Duration `env:"SWEEP_MIN_AGE" envDefault:"24h"`
	MediaThumbnailWidth int           `env:"MEDIA_THUMBNAIL_WIDTH" envDefault:"200"`

	S3 S3Config `envPrefix:"S3_"`
}

type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	PublicURL string `env:"PUBLIC_URL"`
}

// Load reads the process environment. Callers load .env first if they want one.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.MediaPrivateDriver = strings.ToLower(strings.TrimSpace(cfg.MediaPrivateDriver))
	cfg.MediaBaseURL = strings.TrimRight(cfg.MediaBaseURL, "/")

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be > 0")
	}
	if cfg.MediaMaxSize <= 0 {
		return errors.New("MEDIA_MAX_SIZE must be > 0")
	}
	if cfg.MediaMaxPixels <= 0 {
		return errors.New("MEDIA_MAX_PIXELS must be > 0")
	}
	if cfg.MediaQuality < 1 || cfg.MediaQuality > 100 {
		return errors.New("MEDIA_OPTIMIZE_QUALITY must be between 1 and 100")
	}
	if cfg.MediaWorkers <= 0 {
		return errors.New("MEDIA_TRANSFORM_WORKERS must be > 0")
	}
	if cfg.MediaBatchSize <= 0 {
		return errors.New("MEDIA_BATCH_CONCURRENCY must be > 0")
	}
	if cfg.MediaSignedURLTTL <= 0 {
		return errors.New("MEDIA_SIGNED_URL_TTL must be > 0")
	}
	if cfg.MediaSweepMinAge <= 0 {
		return errors.New("SWEEP_MIN_AGE must be > 0")
	}
	if cfg.MediaThumbnailWidth <= 0 {
		return errors.New("MEDIA_THUMBNAIL_WIDTH must be > 0")
	}
	if strings.TrimSpace(cfg.MediaRoot) == "" {
		return errors.New("MEDIA_ROOT must not be empty")
	}

	switch cfg.MediaPrivateDriver {
	case DriverLocal:
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required when MEDIA_PRIVATE_DRIVER=s3")
		}
		if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
			return errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required when MEDIA_PRIVATE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("MEDIA_PRIVATE_DRIVER must be one of: local, s3 (got %q)", cfg.MediaPrivateDriver)
	}

	if cfg.IsProdLike() {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return errors.New("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.MediaSigningKey, defaultSigningKey) {
			return errors.New("in prod/release MEDIA_SIGNING_KEY must be set and not default")
		}
	}
	return nil
}

func (c *Config) IsProdLike() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production" || c.AppEnv == "release"
}

// MediaConfig is the pipeline configuration handed to media.NewService.
func (c *Config) MediaConfig() media.Config {
	cfg := media.DefaultConfig()
	if allowed := trimAll(c.MediaAllowedMime); len(allowed) > 0 {
		cfg.AllowedMimeTypes = allowed
	}
	cfg.MaxSizeBytes = c.MediaMaxSize
	cfg.MaxPixels = c.MediaMaxPixels
	cfg.OptimizeQuality = c.MediaQuality
	cfg.TransformWorkers = c.MediaWorkers
	cfg.BatchConcurrency = c.MediaBatchSize
	cfg.SignedURLTTL = c.MediaSignedURLTTL
	cfg.ThumbnailWidth = c.MediaThumbnailWidth
	cfg.ThumbnailHeight = c.MediaThumbnailWidth
	return cfg
}

func (c *Config) S3DiskConfig() storage.S3Config {
	return storage.S3Config{
		Bucket:    c.S3.Bucket,
		Region:    c.S3.Region,
		Endpoint:  c.S3.Endpoint,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		PublicURL: c.S3.PublicURL,
	}
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
