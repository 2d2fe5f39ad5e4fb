package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-1234"

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
	assert.Error(t, h.Compare("not-a-hash", "x"))
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	s := NewTokenService(testSecret, 24*time.Hour, nil, nil)

	token, err := s.Issue("user-1")
	require.NoError(t, err)

	claims, err := s.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt, time.Minute)
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	s := NewTokenService(testSecret, time.Hour, nil, nil)

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService("another-secret-that-is-long-enough", time.Hour, nil, nil)
		token, err := other.Issue("user-1")
		require.NoError(t, err)
		_, err = s.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenService(testSecret, time.Hour, nil, nil)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.Issue("user-1")
		require.NoError(t, err)
		_, err = s.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenService_Revocation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewTokenService(testSecret, time.Hour, NewRedisRevocationStore(rdb), nil)
	ctx := context.Background()

	token, err := s.Issue("user-1")
	require.NoError(t, err)
	claims, err := s.Verify(ctx, token)
	require.NoError(t, err)

	ok, err := s.Revoke(ctx, claims)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("revoked:"+claims.TokenID))
	assert.Greater(t, mr.TTL("revoked:"+claims.TokenID), 50*time.Minute)

	_, err = s.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	other, err := s.Issue("user-1")
	require.NoError(t, err)
	_, err = s.Verify(ctx, other)
	assert.NoError(t, err)
}

func TestTokenService_RevocationStoreDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	s := NewTokenService(testSecret, time.Hour, NewRedisRevocationStore(rdb), nil)
	token, err := s.Issue("user-1")
	require.NoError(t, err)

	mr.Close()
	claims, err := s.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestTokenService_RevokeWithoutStore(t *testing.T) {
	s := NewTokenService(testSecret, time.Hour, NewRedisRevocationStore(nil), nil)
	assert.Nil(t, s.revoked)

	ok, err := s.Revoke(context.Background(), &Claims{TokenID: "jti", ExpiresAt: time.Now().Add(time.Hour)})
	assert.NoError(t, err)
	assert.False(t, ok)
}
