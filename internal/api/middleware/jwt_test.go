package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

func TestJWTConfigValidateToken_Success(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("test-signing-key-1234567890123456"),
		Issuer:     "safeguard",
		ExpiresIn:  time.Hour,
	}

	token, _, err := GenerateToken(cfg, "u-1", "tenant-a", []string{"hsse_expert", "auditor", "reporter"})
	require.NoError(t, err)

	claims, err := cfg.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.NotBefore)

	actor := claims.Actor()
	assert.Equal(t, []domain.Role{domain.RoleHSSEExpert, domain.RoleReporter}, actor.Roles)
}

func TestJWTConfigValidateToken_RejectsInvalidIssuer(t *testing.T) {
	issuerCfg := JWTConfig{
		SigningKey: []byte("issuer-key-123456789012345678901234"),
		Issuer:     "safeguard",
		ExpiresIn:  time.Hour,
	}
	token, _, err := GenerateToken(issuerCfg, "u-1", "tenant-a", nil)
	require.NoError(t, err)

	validatorCfg := JWTConfig{
		SigningKey: issuerCfg.SigningKey,
		Issuer:     "other-issuer",
	}
	_, err = validatorCfg.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTConfigValidateToken_SupportsVerificationKeyRotation(t *testing.T) {
	oldKey := []byte("old-key-123456789012345678901234567890")
	newKey := []byte("new-key-123456789012345678901234567890")

	token, _, err := GenerateToken(JWTConfig{
		SigningKey: oldKey,
		Issuer:     "safeguard",
		ExpiresIn:  time.Hour,
	}, "u-1", "tenant-a", nil)
	require.NoError(t, err)

	claims, err := JWTConfig{
		SigningKey:       newKey,
		VerificationKeys: [][]byte{oldKey},
		Issuer:           "safeguard",
	}.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)

	_, err = JWTConfig{SigningKey: newKey, Issuer: "safeguard"}.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTConfigValidateToken_RejectsNoneSigningMethod(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID:   "u-1",
		TenantID: "tenant-a",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "safeguard",
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = JWTConfig{
		SigningKey: []byte("signing-key-123456789012345678901234"),
		Issuer:     "safeguard",
	}.ValidateToken(tokenString)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTConfigValidateToken_RequiresTenant(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("tenant-key-1234567890123456789012345"),
		Issuer:     "safeguard",
		ExpiresIn:  time.Hour,
	}
	token, _, err := GenerateToken(cfg, "u-1", "", nil)
	require.NoError(t, err)

	_, err = cfg.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
}

func TestJWTConfigValidateToken_RequiresSigningKey(t *testing.T) {
	token, _, err := GenerateToken(JWTConfig{
		SigningKey: []byte("key-to-sign-valid-token-1234567890123456"),
		Issuer:     "safeguard",
		ExpiresIn:  time.Hour,
	}, "u-1", "tenant-a", nil)
	require.NoError(t, err)

	_, err = JWTConfig{Issuer: "safeguard"}.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenUnverifiable)
	assert.ErrorIs(t, err, ErrJWTSigningKeyMissing)
}

func TestJWTAuth(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("middleware-key-12345678901234567890"),
		Issuer:     "safeguard",
		ExpiresIn:  time.Hour,
	}
	valid, _, err := GenerateToken(cfg, "u-1", "tenant-a", []string{"manager"})
	require.NoError(t, err)

	expiredCfg := cfg
	expiredCfg.ExpiresIn = -time.Minute
	expired, _, err := GenerateToken(expiredCfg, "u-1", "tenant-a", nil)
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(cfg))
	router.GET("/whoami", func(c *gin.Context) {
		actor, ok := ActorFromContext(c.Request.Context())
		require.True(t, ok)
		c.JSON(http.StatusOK, actor)
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, apperrors.CodeAuthFailed},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, apperrors.CodeAuthFailed},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, apperrors.CodeTokenInvalid},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, apperrors.CodeTokenExpired},
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.wantCode, w.Code)
			if tc.wantErr != "" {
				var body ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tc.wantErr, body.Code)
				assert.Equal(t, apperrors.KindUnauthorized, body.Kind)
				return
			}
			var actor domain.Actor
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actor))
			assert.Equal(t, "tenant-a", actor.TenantID)
			assert.Equal(t, []domain.Role{domain.RoleManager}, actor.Roles)
		})
	}
}
