package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("MEDIA_BASE_URL", "http://cdn.local/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "http://cdn.local", cfg.MediaBaseURL)
	assert.Equal(t, DriverLocal, cfg.MediaPrivateDriver)

	mc := cfg.MediaConfig()
	assert.Equal(t, int64(10*1024*1024), mc.MaxSizeBytes)
	assert.Equal(t, 80, mc.OptimizeQuality)
	assert.Equal(t, 4, mc.TransformWorkers)
	assert.Equal(t, int64(40_000_000), mc.MaxPixels)
	assert.Contains(t, mc.AllowedMimeTypes, "image/jpeg")
}

func TestLoad_MediaOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("MEDIA_ALLOWED_MIME", " Image/PNG , application/pdf,")
	t.Setenv("MEDIA_MAX_SIZE", "1024")
	t.Setenv("MEDIA_TRANSFORM_WORKERS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	mc := cfg.MediaConfig()
	assert.Equal(t, []string{"image/png", "application/pdf"}, mc.AllowedMimeTypes)
	assert.Equal(t, int64(1024), mc.MaxSizeBytes)
	assert.Equal(t, 2, mc.TransformWorkers)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppEnv:              "dev",
			JWTTTL:              time.Hour,
			MediaRoot:           "./storage",
			MediaMaxSize:        1,
			MediaMaxPixels:      1,
			MediaQuality:        80,
			MediaWorkers:        1,
			MediaBatchSize:      1,
			MediaSignedURLTTL:   time.Hour,
			MediaPrivateDriver:  DriverLocal,
			MediaSweepMinAge:    time.Hour,
			MediaThumbnailWidth: 200,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero jwt ttl", func(c *Config) { c.JWTTTL = 0 }, "JWT_TTL"},
		{"zero pixel cap", func(c *Config) { c.MediaMaxPixels = 0 }, "MEDIA_MAX_PIXELS"},
		{"quality out of range", func(c *Config) { c.MediaQuality = 101 }, "MEDIA_OPTIMIZE_QUALITY"},
		{"unknown driver", func(c *Config) { c.MediaPrivateDriver = "ftp" }, "MEDIA_PRIVATE_DRIVER"},
		{"s3 without bucket", func(c *Config) { c.MediaPrivateDriver = DriverS3 }, "S3_BUCKET"},
		{"s3 without credentials", func(c *Config) {
			c.MediaPrivateDriver = DriverS3
			c.S3.Bucket = "media"
		}, "S3_ACCESS_KEY"},
		{"prod with default secret", func(c *Config) {
			c.AppEnv = "production"
			c.JWTSecret = defaultJWTSecret
			c.MediaSigningKey = "real-key"
		}, "JWT_SECRET"},
		{"prod with default signing key", func(c *Config) {
			c.AppEnv = "release"
			c.JWTSecret = "real-secret"
			c.MediaSigningKey = defaultSigningKey
		}, "MEDIA_SIGNING_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
