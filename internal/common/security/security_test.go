package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestTokenService() *TokenService {
	return NewTokenService([]byte("test-secret"), time.Hour).WithClock(fixedClock(testNow))
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.HashPassword("pass1234")
	require.NoError(t, err)
	assert.NotEqual(t, "pass1234", hash)
	assert.True(t, h.CheckPasswordHash("pass1234", hash))
	assert.False(t, h.CheckPasswordHash("wrong", hash))

	again, err := h.HashPassword("pass1234")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")
}

func TestPasswordHasherLongPasswords(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	for name, pw := range map[string]string{
		"ascii 80":      strings.Repeat("a", 80),
		"multi-byte 50": strings.Repeat("é", 50),
		"exactly 72":    strings.Repeat("b", 72),
	} {
		t.Run(name, func(t *testing.T) {
			hash, err := h.HashPassword(pw)
			require.NoError(t, err)
			assert.True(t, h.CheckPasswordHash(pw, hash))
			assert.False(t, h.CheckPasswordHash(pw[:10], hash))
		})
	}
}

func TestCheckPasswordHashMalformed(t *testing.T) {
	h := NewPasswordHasher(0)
	assert.False(t, h.CheckPasswordHash("pass1234", ""))
	assert.False(t, h.CheckPasswordHash("pass1234", "not-a-bcrypt-hash"))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.GenerateToken("user-1", "alice", "admin")
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, testNow.Equal(claims.IssuedAt.Time))
	assert.True(t, testNow.Add(time.Hour).Equal(claims.ExpiresAt.Time))
}

func TestVerifyTokenExpired(t *testing.T) {
	token, err := newTestTokenService().GenerateToken("user-1", "alice", "user")
	require.NoError(t, err)

	later := newTestTokenService().WithClock(fixedClock(testNow.Add(time.Hour + time.Second)))
	_, err = later.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyTokenRejects(t *testing.T) {
	svc := newTestTokenService()
	validClaims := func(sub string) Claims {
		return Claims{
			Username: "alice",
			Role:     "user",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				IssuedAt:  jwt.NewNumericDate(testNow),
				ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			},
		}
	}
	sign := func(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, key interface{}) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"malformed", func(t *testing.T) string { return "not.a.token" }},
		{"empty", func(t *testing.T) string { return "" }},
		{"wrong secret", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, validClaims("user-1"), []byte("other-secret"))
		}},
		{"wrong algorithm", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS512, validClaims("user-1"), []byte("test-secret"))
		}},
		{"alg none", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodNone, validClaims("user-1"), jwt.UnsafeAllowNoneSignatureType)
		}},
		{"missing subject", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, validClaims(""), []byte("test-secret"))
		}},
		{"missing expiry", func(t *testing.T) string {
			c := validClaims("user-1")
			c.ExpiresAt = nil
			return sign(t, jwt.SigningMethodHS256, c, []byte("test-secret"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyToken(tt.token(t))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	_, err := NewTokenService(nil, time.Hour).GenerateToken("user-1", "alice", "user")
	assert.Error(t, err)
}
