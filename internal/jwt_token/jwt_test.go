package jwttoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/middleware/auth"
	"qrpass/pkg/platform/middleware/requesttime"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer", "test-audience", time.Hour)

func Test_GenerateDeviceToken(t *testing.T) {
	ctx := context.Background()
	token, err := jwtService.GenerateDeviceToken(ctx, "phone-1", auth.RoleOwner)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "phone-1", claims.DeviceID)
	assert.Equal(t, "phone-1", claims.Subject)
	assert.Equal(t, auth.RoleOwner, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateDeviceToken_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	_, err := jwtService.GenerateDeviceToken(ctx, "", auth.RoleOwner)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = jwtService.GenerateDeviceToken(ctx, "phone-1", "admin")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorContains(t, err, "invalid token")
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	ctx := requesttime.WithTime(context.Background(), time.Now().Add(-2*time.Hour))
	token, err := jwtService.GenerateDeviceToken(ctx, "phone-1", auth.RoleScanner)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorContains(t, err, "token expired")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsForeignIssuerAndAudience(t *testing.T) {
	ctx := context.Background()
	for _, other := range []*JWTService{
		NewJWTService("test-signing-key", "other-issuer", "test-audience", time.Hour),
		NewJWTService("test-signing-key", "test-issuer", "other-audience", time.Hour),
		NewJWTService("wrong-key", "test-issuer", "test-audience", time.Hour),
	} {
		token, err := other.GenerateDeviceToken(ctx, "phone-1", auth.RoleOwner)
		require.NoError(t, err)
		_, err = jwtService.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	}
}

func Test_ValidateToken_RejectsAlgorithmConfusion(t *testing.T) {
	claims := DeviceTokenClaims{
		DeviceID: "phone-1",
		Role:     auth.RoleOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
			ID:        uuid.NewString(),
		},
	}

	cases := []struct {
		name       string
		signMethod jwt.SigningMethod
		signKey    any
	}{
		{
			name:       "hs512 header rejected",
			signMethod: jwt.SigningMethodHS512,
			signKey:    []byte("test-signing-key"),
		},
		{
			name:       "alg none rejected",
			signMethod: jwt.SigningMethodNone,
			signKey:    jwt.UnsafeAllowNoneSignatureType,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			token := jwt.NewWithClaims(tt.signMethod, claims)
			tokenString, err := token.SignedString(tt.signKey)
			require.NoError(t, err)

			_, err = jwtService.ValidateToken(tokenString)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func Test_AdapterSatisfiesMiddleware(t *testing.T) {
	var validator auth.TokenValidator = NewJWTServiceAdapter(jwtService)
	token, err := jwtService.GenerateDeviceToken(context.Background(), "gate-1", auth.RoleScanner)
	require.NoError(t, err)

	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, &auth.DeviceClaims{DeviceID: "gate-1", Role: auth.RoleScanner}, claims)

	_, err = validator.ValidateToken("garbage")
	assert.Error(t, err)
}
