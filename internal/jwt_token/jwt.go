// Package jwttoken issues and validates the bearer tokens devices present to the API.
package jwttoken

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/middleware/auth"
	"qrpass/pkg/platform/middleware/requesttime"
)

// DeviceTokenClaims identify a registered device and the role it acts in.
type DeviceTokenClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles device token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
}

func NewJWTService(signingKey, issuer, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
	}
}

func (s *JWTService) TTL() time.Duration {
	return s.tokenTTL
}

// GenerateDeviceToken signs an HS256 token for deviceID acting as role.
func (s *JWTService) GenerateDeviceToken(ctx context.Context, deviceID, role string) (string, error) {
	if deviceID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "device id cannot be empty")
	}
	if !slices.Contains([]string{auth.RoleOwner, auth.RoleScanner}, role) {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown device role")
	}
	now := requesttime.Now(ctx)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, DeviceTokenClaims{
		DeviceID: deviceID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*DeviceTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &DeviceTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*DeviceTokenClaims)
	if !ok || claims.DeviceID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
