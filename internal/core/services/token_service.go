package services

import (
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// StreamClaims binds a stream token to a camera, user, store and permission
// set. Verification is stateless: no registry lookup is ever required.
type StreamClaims struct {
	CameraID    domain.CameraID `json:"camera_id"`
	UserID      domain.UserID   `json:"user_id"`
	StoreID     domain.StoreID  `json:"store_id"`
	Permissions []string        `json:"permissions"`
	jwt.RegisteredClaims
}

type tokenService struct {
	secret     []byte
	defaultTTL time.Duration
}

func NewTokenService(secret string, defaultTTL time.Duration) ports.TokenService {
	return &tokenService{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
	}
}

func (s *tokenService) Issue(cameraID domain.CameraID, userID domain.UserID, storeID domain.StoreID, permissions []string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &StreamClaims{
		CameraID:    cameraID,
		UserID:      userID,
		StoreID:     storeID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate fails closed: parse errors, expired timestamps and signature
// mismatches all collapse into domain.ErrTokenInvalid.
func (s *tokenService) Validate(tokenString string) (*domain.StreamToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &StreamClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*StreamClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.StreamToken{
		CameraID:    claims.CameraID,
		UserID:      claims.UserID,
		StoreID:     claims.StoreID,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
