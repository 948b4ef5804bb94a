package media

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSweeper_RemovesOnlyOldUnreferencedBlobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opts := DefaultUploadOptions()
	opts.GenerateThumbnail = true
	kept, err := env.svc.Upload(ctx, jpegFile(t, "kept.jpg", 300, 300), 1, opts)
	require.NoError(t, err)

	put := func(p string, age time.Duration) {
		_, err := env.public.Put(ctx, p, strings.NewReader("orphan"), "")
		require.NoError(t, err)
		abs, err := env.public.Path(p)
		require.NoError(t, err)
		mod := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(abs, mod, mod))
	}
	put("media/2024/01/old-orphan.jpg", 48*time.Hour)
	put("media/2024/01/fresh-orphan.jpg", time.Minute)
	put("exports/outside-media.csv", 48*time.Hour)

	// Referenced blobs are kept regardless of age.
	for _, p := range []string{kept.Path, kept.ThumbnailPath()} {
		abs, err := env.public.Path(p)
		require.NoError(t, err)
		old := time.Now().Add(-72 * time.Hour)
		require.NoError(t, os.Chtimes(abs, old, old))
	}

	sweeper := NewSweeper(env.repo, env.disks, zaptest.NewLogger(t))
	report, err := sweeper.Sweep(ctx, "public", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 1, report.Removed)
	assert.Zero(t, report.Failed)
	assert.ElementsMatch(t, []string{
		kept.Path,
		kept.ThumbnailPath(),
		"media/2024/01/fresh-orphan.jpg",
		"exports/outside-media.csv",
	}, env.blobs(t, env.public))
}

func TestSweeper_UnknownDisk(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewSweeper(env.repo, env.disks, nil).Sweep(context.Background(), "nope", time.Hour)

	assert.Error(t, err)
}
