package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"adminpanel/internal/config"
	"adminpanel/internal/database"
	"adminpanel/internal/domain/user"
	"adminpanel/internal/storage"
)

const baseURL = "http://localhost"

type testSuite struct {
	app        *App
	adminToken string
	userToken  string
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupSuite(t *testing.T) *testSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        "file:server_" + name + "?mode=memory&cache=shared",
		}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		AppEnv:              "test",
		JWTSecret:           "test-secret",
		JWTTTL:              time.Hour,
		MediaRoot:           t.TempDir(),
		MediaBaseURL:        baseURL,
		MediaSigningKey:     "test-signing-key",
		MediaMaxSize:        5 * 1024 * 1024,
		MediaQuality:        80,
		MediaWorkers:        2,
		MediaBatchSize:      2,
		MediaSignedURLTTL:   time.Hour,
		MediaPrivateDriver:  config.DriverLocal,
		MediaSweepMinAge:    time.Hour,
		MediaThumbnailWidth: 100,
	}
	signer := storage.NewSigner(cfg.MediaSigningKey)
	disks, err := BuildDisks(context.Background(), cfg, signer)
	require.NoError(t, err)

	app := New(cfg, db, disks, signer, zaptest.NewLogger(t))

	ctx := context.Background()
	admin, err := app.Users.Create(ctx, user.CreateInput{Name: "Admin", Email: "admin@example.com", Password: "admin-password", Role: user.RoleAdmin})
	require.NoError(t, err)
	member, err := app.Users.Create(ctx, user.CreateInput{Name: "Member", Email: "member@example.com", Password: "member-password"})
	require.NoError(t, err)

	adminToken, err := app.Tokens.Issue(admin.ID, string(user.RoleAdmin))
	require.NoError(t, err)
	userToken, err := app.Tokens.Issue(member.ID, string(user.RoleUser))
	require.NoError(t, err)

	return &testSuite{app: app, adminToken: adminToken, userToken: userToken}
}

func (s *testSuite) do(t *testing.T, method, target string, body *bytes.Buffer, contentType, tok string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartFile(t *testing.T, field, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := setupSuite(t)
	w, _ := s.do(t, http.MethodGet, "/health", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := setupSuite(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/media", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AUTH_HEADER_MISSING", resp.Error.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/media", nil, "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadToPublicDiskAndServe(t *testing.T) {
	s := setupSuite(t)

	content := pngBytes(t, 64, 48)
	body, ct := multipartFile(t, "file", "Holiday Photo.png", content, map[string]string{"collection": "gallery"})
	w, resp := s.do(t, http.MethodPost, "/api/v1/media", body, ct, s.userToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var m struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &m))
	assert.Contains(t, m.URL, baseURL+"/files/public/media/gallery/")
	assert.True(t, strings.HasSuffix(m.URL, "_holiday-photo.png"), m.URL)

	w, _ = s.do(t, http.MethodGet, strings.TrimPrefix(m.URL, baseURL), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))

	w, resp = s.do(t, http.MethodGet, "/api/v1/media/"+m.ID, nil, "", s.adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestUploadedFileServedByContentNotName(t *testing.T) {
	s := setupSuite(t)

	body, ct := multipartFile(t, "file", "invoice.html", []byte("%PDF-1.4\n<html><script>alert(1)</script></html>\n%%EOF\n"), nil)
	w, resp := s.do(t, http.MethodPost, "/api/v1/media", body, ct, s.userToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var m struct {
		URL       string `json:"url"`
		Extension string `json:"extension"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &m))
	assert.Equal(t, "pdf", m.Extension)
	assert.True(t, strings.HasSuffix(m.URL, "_invoice.pdf"), m.URL)

	w, _ = s.do(t, http.MethodGet, strings.TrimPrefix(m.URL, baseURL), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestPrivateDiskNeedsSignature(t *testing.T) {
	s := setupSuite(t)

	body, ct := multipartFile(t, "file", "contract.pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n"), map[string]string{"disk": PrivateDisk})
	w, resp := s.do(t, http.MethodPost, "/api/v1/media", body, ct, s.userToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var m struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &m))
	assert.Contains(t, m.URL, "signature=")
	unsigned, _, _ := strings.Cut(m.URL, "?")

	w, _ = s.do(t, http.MethodGet, strings.TrimPrefix(m.URL, baseURL), nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))

	w, resp = s.do(t, http.MethodGet, strings.TrimPrefix(unsigned, baseURL), nil, "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_SIGNATURE", resp.Error.Code)
}

func TestAvatarIsProtectedFromDeletion(t *testing.T) {
	s := setupSuite(t)

	body, ct := multipartFile(t, "avatar", "me.png", pngBytes(t, 500, 500), nil)
	w, resp := s.do(t, http.MethodPost, "/api/v1/profile/avatar", body, ct, s.userToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile struct {
		Avatar             *string `json:"avatar"`
		AvatarURL          string  `json:"avatar_url"`
		AvatarThumbnailURL string  `json:"avatar_thumbnail_url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	require.NotNil(t, profile.Avatar)
	assert.Contains(t, profile.AvatarURL, "/files/public/media/avatars/")
	assert.Contains(t, profile.AvatarThumbnailURL, "/thumbnails/")

	w, resp = s.do(t, http.MethodDelete, "/api/v1/media/"+*profile.Avatar, nil, "", s.userToken)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MEDIA_IN_USE", resp.Error.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := setupSuite(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/admin/users", nil, "", s.userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, resp.Error)

	w, resp = s.do(t, http.MethodGet, "/api/v1/admin/users/stats", nil, "", s.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	var stats user.Stats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Admins)
}
