package media

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SweepReport summarizes one Sweep run.
type SweepReport struct {
	Disk    string
	Scanned int
	Removed int
	Failed  int
}

// Sweeper removes blobs under media/ that no record references. It is the
// cleanup path for orphans left by uploads whose rollback failed.
type Sweeper struct {
	repo   Repository
	disks  DiskResolver
	logger *zap.Logger
	now    func() time.Time
}

func NewSweeper(repo Repository, disks DiskResolver, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{repo: repo, disks: disks, logger: logger.Named("media_sweep"), now: time.Now}
}

// Sweep only touches blobs older than minAge so uploads still in flight
// are never removed.
func (s *Sweeper) Sweep(ctx context.Context, diskName string, minAge time.Duration) (SweepReport, error) {
	report := SweepReport{Disk: diskName}

	disk, err := s.disks.Disk(diskName)
	if err != nil {
		return report, err
	}
	objects, err := disk.List(ctx, rootDirectory)
	if err != nil {
		return report, fmt.Errorf("failed to list %s: %w", diskName, err)
	}
	referenced, err := s.repo.ReferencedPaths(ctx, diskName)
	if err != nil {
		return report, fmt.Errorf("failed to load referenced paths: %w", err)
	}

	cutoff := s.now().Add(-minAge)
	for _, obj := range objects {
		report.Scanned++
		if _, ok := referenced[obj.Path]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		if _, err := disk.Delete(ctx, obj.Path); err != nil {
			report.Failed++
			s.logger.Error("failed to remove orphaned blob",
				zap.String("disk", diskName), zap.String("path", obj.Path), zap.Error(err))
			continue
		}
		report.Removed++
		s.logger.Info("removed orphaned blob", zap.String("disk", diskName), zap.String("path", obj.Path))
	}
	return report, nil
}
