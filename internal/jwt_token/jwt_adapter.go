package jwttoken

import (
	"qrpass/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *DeviceTokenClaims) *auth.DeviceClaims {
	return &auth.DeviceClaims{
		DeviceID: claims.DeviceID,
		Role:     claims.Role,
	}
}

// JWTServiceAdapter satisfies auth.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.DeviceClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
