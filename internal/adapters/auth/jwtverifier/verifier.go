package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"petsy-backend/internal/ports/auth"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier valida tokens HS256 emitidos por el proveedor de identidad.
// El core solo consume sub + role; el resto del perfil no le interesa.
type Verifier struct {
	secret []byte
}

func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrInvalidToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return auth.Claims{}, ErrInvalidToken
	}

	if strings.TrimSpace(c.Subject) == "" {
		return auth.Claims{}, ErrInvalidToken
	}

	role := c.Role
	if role == "" {
		role = "user"
	}

	return auth.Claims{
		UserID: c.Subject,
		Role:   role,
	}, nil
}
