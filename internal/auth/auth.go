package auth

import "errors"

var ErrInvalidToken = errors.New("invalid token")

// Config holds verification settings for tokens issued by the identity
// provider. This service never issues tokens itself.
type Config struct {
	Secret string
	Issuer string
}
