package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/newsfront/internal/contentapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return signed
}

func TestReadClaims(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	claims := ReadClaims(signedToken(t, "user-1", expires))

	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.ExpiresAt.Equal(expires))
}

func TestReadClaimsOpaqueToken(t *testing.T) {
	assert.Equal(t, Claims{}, ReadClaims("opaque-session-id"))
	assert.Equal(t, Claims{}, ReadClaims("a.b.c"))
}

func TestNewIdentityFallsBackToSubject(t *testing.T) {
	expires := time.Now().Add(-time.Minute)
	id := NewIdentity(signedToken(t, "user-2", expires), contentapi.User{Email: "a@b.c"})

	assert.Equal(t, "user-2", id.User.ID)
	assert.True(t, id.Expired(time.Now()))
}

func TestIdentityContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)

	id := Identity{Token: "tok", User: contentapi.User{ID: "u1", Roles: []string{"Admin"}}}
	ctx := WithIdentity(context.Background(), id)

	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.User.ID)
	assert.True(t, got.HasRole("admin"))
	assert.Equal(t, "tok", contentapi.TokenFrom(ctx))
}
