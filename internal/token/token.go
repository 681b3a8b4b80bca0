// Package token выпускает и проверяет подписанные JWT (HS256).
//
// Access- и refresh-токены подписываются разными секретами, поэтому токен
// одного вида не проходит проверку как токен другого вида.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/config"
)

var (
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("token expired")
	// ErrSignature — подпись не сходится или алгоритм не HS256.
	ErrSignature = errors.New("token signature invalid")
	// ErrMalformed — токен не разбирается или claims некорректны.
	ErrMalformed = errors.New("token malformed")
)

// AccessClaims — полезная нагрузка access-токена.
type AccessClaims struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// RefreshClaims — полезная нагрузка refresh-токена.
type RefreshClaims struct {
	UserID uuid.UUID
	ID     string
}

type accessJWT struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

type refreshJWT struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет токены. Безопасен для конкурентного использования.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewIssuer создаёт Issuer из настроек auth.
func NewIssuer(cfg config.AuthConfig) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
	}
}

// RefreshTTL возвращает время жизни refresh-токена.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess подписывает access-токен, действующий accessTTL от now.
func (i *Issuer) IssueAccess(c AccessClaims, now time.Time) (string, time.Time, error) {
	const op = "token.IssueAccess"

	exp := now.Add(i.accessTTL)
	claims := accessJWT{
		UserID: c.UserID.String(),
		Email:  c.Email,
		Name:   c.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// IssueRefresh подписывает refresh-токен со случайным jti, поэтому два токена,
// выпущенные в одну секунду, всё равно различаются.
func (i *Issuer) IssueRefresh(userID uuid.UUID, now time.Time) (string, time.Time, error) {
	const op = "token.IssueRefresh"

	exp := now.Add(i.refreshTTL)
	claims := refreshJWT{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// VerifyAccess проверяет подпись, срок и издателя access-токена.
func (i *Issuer) VerifyAccess(raw string) (AccessClaims, error) {
	const op = "token.VerifyAccess"

	var claims accessJWT
	if err := i.parse(raw, &claims, i.accessSecret); err != nil {
		return AccessClaims{}, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return AccessClaims{UserID: uid, Email: claims.Email, Name: claims.Name}, nil
}

// VerifyRefresh проверяет подпись, срок и издателя refresh-токена.
func (i *Issuer) VerifyRefresh(raw string) (RefreshClaims, error) {
	const op = "token.VerifyRefresh"

	var claims refreshJWT
	if err := i.parse(raw, &claims, i.refreshSecret); err != nil {
		return RefreshClaims{}, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return RefreshClaims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return RefreshClaims{UserID: uid, ID: claims.ID}, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	if raw == "" {
		return ErrMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)

	switch {
	case err == nil && tok.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignature
	default:
		return ErrMalformed
	}
}
