package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	svc := New("secret", time.Hour)

	raw, err := svc.Issue(7, "admin")
	require.NoError(t, err)

	claims, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestParse_Rejects(t *testing.T) {
	svc := New("secret", time.Hour)
	other := New("other-secret", time.Hour)
	expired := New("secret", -time.Minute)

	foreign, err := other.Issue(7, "user")
	require.NoError(t, err)
	stale, err := expired.Issue(7, "user")
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":   "not-a-token",
		"wrong key": foreign,
		"expired":   stale,
		"empty":     "",
	} {
		_, err := svc.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
