package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Provisioner creates the local directory row for an authenticated
// identity on first sight.
type Provisioner interface {
	EnsureUser(ctx context.Context, id int64, email, fullName string) error
}

// Service verifies access tokens minted by the external identity provider.
type Service struct {
	config      Config
	provisioner Provisioner
}

func NewService(config Config) *Service {
	return &Service{config: config}
}

// SetProvisioner attaches the user directory. Optional.
func (s *Service) SetProvisioner(p Provisioner) {
	s.provisioner = p
}

func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
