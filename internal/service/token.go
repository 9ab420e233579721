package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vostrikovaa/tourdesk/pkg/log"
)

// Вид токена. Попадает в claims, чтобы access-токен никогда не прошёл
// проверку как refresh и наоборот.
const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

type tokenClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// issueToken подписывает токен заданного вида и возвращает его вместе с jti.
// Токен самодостаточен: подпись и срок проверяются без обращения к БД,
// но право использовать refresh-токен дополнительно требует проверки реестра.
func (s *Service) issueToken(ctx context.Context, userID uuid.UUID, email, kind string, now time.Time, ttl time.Duration) (string, uuid.UUID, error) {
	const op = "service.token.issueToken"

	lg := log.From(ctx)

	jti := uuid.New()
	claims := tokenClaims{
		UserID: userID.String(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}
	if kind == kindAccess {
		claims.Email = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		lg.Error("token_sign_failed",
			slog.String("op", op),
			slog.String("kind", kind),
			slog.String("err", err.Error()),
		)
		return "", uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return signed, jti, nil
}

// verifyToken проверяет подпись, срок и вид токена.
// Возвращает ErrTokenExpired строго раньше любых проверок реестра:
// просроченный токен всегда отклоняется как expired, а не revoked.
func (s *Service) verifyToken(tokenStr, kind string) (*tokenClaims, error) {
	const op = "service.token.verifyToken"

	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// parseRefreshUnsafe разбирает refresh-токен, проверяя подпись и вид,
// но игнорируя срок действия. Используется только в logout: отзыв уже
// просроченного токена — валидная идемпотентная операция.
func (s *Service) parseRefreshUnsafe(tokenStr string) (*tokenClaims, error) {
	const op = "service.token.parseRefreshUnsafe"

	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || claims.Kind != kindRefresh {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// tokenIDs извлекает uid и jti из claims.
func tokenIDs(claims *tokenClaims) (userID, jti uuid.UUID, err error) {
	const op = "service.token.tokenIDs"

	userID, err = uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	jti, err = uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return userID, jti, nil
}
