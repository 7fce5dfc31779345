package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/you/chefkix/domain"
)

// JWTDecoderImpl implements domain.TokenDecoder. The client cannot verify
// signatures; it only needs the claims to schedule refreshes.
type JWTDecoderImpl struct {
	parser *jwt.Parser
}

// NewJWTDecoder creates a new JWT decoder
func NewJWTDecoder() domain.TokenDecoder {
	return &JWTDecoderImpl{parser: jwt.NewParser()}
}

// ExpiresAt implements domain.TokenDecoder
func (j *JWTDecoderImpl) ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := j.claims(tokenString)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, domain.ErrTokenMalformed
	}
	return exp.Time, nil
}

// Subject implements domain.TokenDecoder
func (j *JWTDecoderImpl) Subject(tokenString string) (string, error) {
	claims, err := j.claims(tokenString)
	if err != nil {
		return "", err
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	// some identity providers put the user id in a custom claim
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	return "", domain.ErrTokenMalformed
}

func (j *JWTDecoderImpl) claims(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, domain.ErrNotAuthenticated
	}

	claims := jwt.MapClaims{}
	if _, _, err := j.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
	return claims, nil
}
