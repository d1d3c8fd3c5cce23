package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
)

// Claims carries the validated bearer token payload. Token issuance lives in
// the onboarding service; the gateway only validates.
type Claims struct {
	SchoolID string `json:"school_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService validates bearer tokens for the REST and socket surfaces.
type AuthService struct {
	secret []byte
}

// NewAuthService instantiates AuthService.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}
