// Package server assembles the HTTP application from its parts.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"adminpanel/internal/config"
	"adminpanel/internal/domain/media"
	"adminpanel/internal/domain/user"
	"adminpanel/internal/middleware"
	"adminpanel/internal/pkg/token"
	"adminpanel/internal/storage"
)

const (
	PublicDisk  = "public"
	PrivateDisk = "private"
)

type App struct {
	Router *gin.Engine
	Media  *media.Service
	Users  *user.Service
	Tokens *token.Service
}

// BuildDisks creates the public local disk and the private disk, which is
// local or S3 depending on MEDIA_PRIVATE_DRIVER.
func BuildDisks(ctx context.Context, cfg *config.Config, signer *storage.Signer) (*storage.Manager, error) {
	public, err := storage.NewLocalDisk(PublicDisk, filepath.Join(cfg.MediaRoot, PublicDisk),
		cfg.MediaBaseURL+"/files/"+PublicDisk, signer)
	if err != nil {
		return nil, fmt.Errorf("public disk: %w", err)
	}

	var private storage.Disk
	switch cfg.MediaPrivateDriver {
	case config.DriverS3:
		private, err = storage.NewS3Disk(ctx, PrivateDisk, cfg.S3DiskConfig())
	default:
		private, err = storage.NewLocalDisk(PrivateDisk, filepath.Join(cfg.MediaRoot, PrivateDisk),
			cfg.MediaBaseURL+"/files/"+PrivateDisk, signer)
	}
	if err != nil {
		return nil, fmt.Errorf("private disk: %w", err)
	}
	return storage.NewManager(public, private), nil
}

// New wires services and routes. The user repository guards media deletion
// so avatars cannot be removed from under their owners.
func New(cfg *config.Config, db *gorm.DB, disks *storage.Manager, signer *storage.Signer, log *zap.Logger) *App {
	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens := token.New(cfg.JWTSecret, cfg.JWTTTL)

	mediaService := media.NewService(media.NewRepository(db), disks, cfg.MediaConfig(), log)
	userRepo := user.NewRepository(db)
	mediaService.AddReferenceGuard(userRepo)
	userService := user.NewService(userRepo, mediaService, log)

	r := gin.New()
	r.Use(middleware.ErrorLogger(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	storage.NewFileServer(disks, signer, PublicDisk).RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(tokens))
	{
		media.RegisterRoutes(v1, media.NewHandler(mediaService, PrivateDisk))
		user.RegisterRoutes(v1, user.NewHandler(userService))
	}

	return &App{
		Router: r,
		Media:  mediaService,
		Users:  userService,
		Tokens: tokens,
	}
}
