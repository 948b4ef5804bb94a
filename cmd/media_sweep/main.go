package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"adminpanel/internal/config"
	"adminpanel/internal/database"
	"adminpanel/internal/domain/media"
	"adminpanel/internal/logging"
	"adminpanel/internal/server"
	"adminpanel/internal/storage"
)

// media_sweep removes blobs under media/ that no record references and
// that are older than SWEEP_MIN_AGE. Run it from cron.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}

	disks, err := server.BuildDisks(ctx, cfg, storage.NewSigner(cfg.MediaSigningKey))
	if err != nil {
		logger.Fatal("storage setup failed", zap.Error(err))
	}

	sweeper := media.NewSweeper(media.NewRepository(db), disks, logger)
	failed := false
	for _, name := range disks.Names() {
		report, err := sweeper.Sweep(ctx, name, cfg.MediaSweepMinAge)
		if err != nil {
			logger.Error("sweep failed", zap.String("disk", name), zap.Error(err))
			failed = true
			continue
		}
		logger.Info("sweep completed",
			zap.String("disk", report.Disk),
			zap.Int("scanned", report.Scanned),
			zap.Int("removed", report.Removed),
			zap.Int("failed", report.Failed),
		)
		if report.Failed > 0 {
			failed = true
		}
	}
	if failed {
		logger.Fatal("media sweep finished with errors")
	}
}
