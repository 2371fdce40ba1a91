package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/justinzzc/vision-box/internal/ports"
)

// JWTSigner implements HS256 signing/parsing for management API sessions.
// The key is held at adapter level so the application layer stays
// crypto-library agnostic.
type JWTSigner struct {
	key    []byte
	issuer string
}

func NewJWTSigner(secret, issuer string) (*JWTSigner, error) {
	if secret == "" {
		return nil, errors.New("jwt signing secret is required")
	}
	if issuer == "" {
		issuer = "vision-box"
	}
	return &JWTSigner{key: []byte(secret), issuer: issuer}, nil
}

type ownerJWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) Sign(claims ports.OwnerClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ownerJWTClaims{
		Role: claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.OwnerID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(s.key)
}

func (s *JWTSigner) ParseAndValidate(raw string) (ports.OwnerClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &ownerJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return ports.OwnerClaims{}, err
	}
	claims, ok := parsed.Claims.(*ownerJWTClaims)
	if !ok || !parsed.Valid {
		return ports.OwnerClaims{}, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return ports.OwnerClaims{}, errors.New("missing subject claim")
	}

	out := ports.OwnerClaims{
		OwnerID: claims.Subject,
		Role:    claims.Role,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}
