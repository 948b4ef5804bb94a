package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminpanel/internal/pkg/token"
)

func protectedRouter(t *testing.T, tokens *token.Service, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWTAuth(tokens)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		role, _ := c.Get("role")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role})
	})
	router.GET("/protected", handlers...)
	return router
}

func get(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_ValidToken(t *testing.T) {
	tokens := token.New("test-secret-123", time.Hour)
	valid, err := tokens.Issue(42, "user")
	require.NoError(t, err)

	w := get(protectedRouter(t, tokens), "Bearer "+valid)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "42")
	assert.Contains(t, w.Body.String(), "user")
}

func TestJWTAuth_Rejections(t *testing.T) {
	tokens := token.New("secret", time.Hour)
	foreign, err := token.New("other-secret", time.Hour).Issue(1, "admin")
	require.NoError(t, err)

	cases := []struct{ header, code string }{
		{"", "AUTH_HEADER_MISSING"},
		{"Basic dGVzdA==", "INVALID_AUTH_FORMAT"},
		{"Bearer ", "INVALID_AUTH_FORMAT"},
		{"Bearer invalid-jwt-here", "INVALID_TOKEN"},
		{"Bearer " + foreign, "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		w := get(protectedRouter(t, tokens), tc.header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.header)
		assert.Contains(t, w.Body.String(), tc.code, tc.header)
	}
}

func TestAdminOnly(t *testing.T) {
	tokens := token.New("secret", time.Hour)
	router := protectedRouter(t, tokens, AdminOnly())

	userToken, err := tokens.Issue(2, "user")
	require.NoError(t, err)
	adminToken, err := tokens.Issue(1, "admin")
	require.NoError(t, err)

	w := get(router, "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	w = get(router, "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
}
