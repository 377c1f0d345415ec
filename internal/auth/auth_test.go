package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-realtime/internal/models"
)

func TestIssueAndParse(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(7, models.RoleAdmin, time.Minute)
	require.NoError(t, err)

	claims, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestParseRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := NewVerifier("a").Issue(1, models.RoleUser, time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier("b").Parse(token)
	assert.Error(t, err)

	expired, err := NewVerifier("a").Issue(1, models.RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier("a").Parse(expired)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
