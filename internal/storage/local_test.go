package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T) *LocalDisk {
	t.Helper()
	d, err := NewLocalDisk("public", t.TempDir(), "http://localhost/files/public/", NewSigner("k"))
	require.NoError(t, err)
	return d
}

func TestCleanPath(t *testing.T) {
	ok := map[string]string{
		"media/2024/01/a.jpg": "media/2024/01/a.jpg",
		"media//2024/./a.jpg": "media/2024/a.jpg",
		`media\2024\a.jpg`:    "media/2024/a.jpg",
		" media/a.jpg ":       "media/a.jpg",
	}
	for in, want := range ok {
		got, err := CleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "/etc/passwd", "../secret", "media/../../x", ".", "./"} {
		_, err := CleanPath(in)
		assert.ErrorIs(t, err, ErrInvalidPath, in)
	}
}

func TestLocalDisk_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	n, err := d.Put(ctx, "media/2024/01/hello.txt", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	exists, err := d.Exists(ctx, "media/2024/01/hello.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := d.Open(ctx, "media/2024/01/hello.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	// overwrite in place
	_, err = d.Put(ctx, "media/2024/01/hello.txt", strings.NewReader("bye"), "text/plain")
	require.NoError(t, err)
	abs, err := d.Path("media/2024/01/hello.txt")
	require.NoError(t, err)
	raw, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(raw))

	deleted, err := d.Delete(ctx, "media/2024/01/hello.txt")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = d.Delete(ctx, "media/2024/01/hello.txt")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = d.Open(ctx, "media/2024/01/hello.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestLocalDisk_PutFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	_, err := d.Put(ctx, "media/x/broken.bin", failingReader{}, "")
	require.Error(t, err)

	objects, err := d.List(ctx, "media")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalDisk_PutHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDisk(t).Put(ctx, "a.txt", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalDisk_List(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	for _, p := range []string{"media/a.txt", "media/sub/b.txt", "other/c.txt"} {
		_, err := d.Put(ctx, p, strings.NewReader(p), "")
		require.NoError(t, err)
	}

	objects, err := d.List(ctx, "media")
	require.NoError(t, err)
	paths := make([]string, 0, len(objects))
	for _, o := range objects {
		paths = append(paths, o.Path)
	}
	assert.ElementsMatch(t, []string{"media/a.txt", "media/sub/b.txt"}, paths)

	missing, err := d.List(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLocalDisk_URLs(t *testing.T) {
	d := newTestDisk(t)

	assert.Equal(t, "http://localhost/files/public/media/my%20file.jpg", d.URL("media/my file.jpg"))

	expiresAt := time.Now().Add(time.Hour)
	signed, err := d.SignedURL(context.Background(), "media/a.jpg", expiresAt)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/files/public/media/a.jpg", u.Path)
	require.NoError(t, d.signer.Verify("public", "media/a.jpg", u.Query().Get("expires"), u.Query().Get("signature")))
}

func TestLocalDisk_PathStaysUnderRoot(t *testing.T) {
	d := newTestDisk(t)

	abs, err := d.Path("media/a.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(abs, d.root+string(filepath.Separator)))

	_, err = d.Path("../outside")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSigner(t *testing.T) {
	s := NewSigner("key")
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	exp, sig := s.Sign("private", "a/b.jpg", now.Add(time.Minute))

	require.NoError(t, s.Verify("private", "a/b.jpg", itoa(exp), sig))
	assert.ErrorIs(t, s.Verify("private", "a/other.jpg", itoa(exp), sig), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify("public", "a/b.jpg", itoa(exp), sig), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify("private", "a/b.jpg", "nope", sig), ErrInvalidSignature)
	assert.ErrorIs(t, NewSigner("other").Verify("private", "a/b.jpg", itoa(exp), sig), ErrInvalidSignature)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, s.Verify("private", "a/b.jpg", itoa(exp), sig), ErrSignatureExpired)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
