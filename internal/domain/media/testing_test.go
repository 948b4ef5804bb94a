package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"adminpanel/internal/storage"
)

type testEnv struct {
	svc     *Service
	repo    Repository
	db      *gorm.DB
	public  *storage.LocalDisk
	private *storage.LocalDisk
	disks   *storage.Manager
	clock   *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        "file:" + name + "?mode=memory&cache=shared",
		}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writers; shared-cache SQLite rejects concurrent ones.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Media{}))
	return db
}

func newTestEnv(t *testing.T, configure ...func(*Config)) *testEnv {
	t.Helper()

	signer := storage.NewSigner("test-key")
	public, err := storage.NewLocalDisk("public", t.TempDir(), "http://localhost/files/public", signer)
	require.NoError(t, err)
	private, err := storage.NewLocalDisk("private", t.TempDir(), "http://localhost/files/private", signer)
	require.NoError(t, err)
	disks := storage.NewManager(public, private)

	cfg := DefaultConfig()
	for _, fn := range configure {
		fn(&cfg)
	}

	db := testDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, disks, cfg, zaptest.NewLogger(t))
	clock := &fakeClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	svc.now = clock.now

	return &testEnv{svc: svc, repo: repo, db: db, public: public, private: private, disks: disks, clock: clock}
}

func (e *testEnv) blobs(t *testing.T, disk *storage.LocalDisk) []string {
	t.Helper()
	objects, err := disk.List(context.Background(), "")
	require.NoError(t, err)
	paths := make([]string, 0, len(objects))
	for _, o := range objects {
		paths = append(paths, o.Path)
	}
	return paths
}

func (e *testEnv) recordCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&Media{}).Count(&n).Error)
	return n
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func jpegFile(t *testing.T, name string, w, h int) File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}))
	return File{Filename: name, Size: int64(buf.Len()), Reader: bytes.NewReader(buf.Bytes())}
}

func pngFile(t *testing.T, name string, w, h int) File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return File{Filename: name, Size: int64(buf.Len()), Reader: bytes.NewReader(buf.Bytes())}
}

func textFile(name, body string) File {
	return File{Filename: name, Size: int64(len(body)), Reader: strings.NewReader(body)}
}

func pdfFile(name string) File {
	return textFile(name, "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}

func storedImageSize(t *testing.T, disk storage.Disk, p string) (int, int) {
	t.Helper()
	rc, err := disk.Open(context.Background(), p)
	require.NoError(t, err)
	defer rc.Close()
	cfg, _, err := image.DecodeConfig(rc)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

// failingRepo fails Create and/or Delete on demand.
type failingRepo struct {
	Repository
	createErr error
	deleteErr error
}

func (r *failingRepo) Create(ctx context.Context, m *Media) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.Repository.Create(ctx, m)
}

func (r *failingRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Repository.Delete(ctx, id)
}

type guardFunc func(ctx context.Context, id string) (bool, error)

func (f guardFunc) IsMediaReferenced(ctx context.Context, id string) (bool, error) { return f(ctx, id) }

var errBoom = errors.New("boom")
