package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vostrikovaa/tourdesk/internal/service"
	"github.com/vostrikovaa/tourdesk/internal/transport/http/apierrors"
)

// TokenValidator проверяет access-токен и возвращает идентичность субъекта.
// Реализуется service.Service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (uuid.UUID, string, error)
}

type userIDKey struct{}
type emailKey struct{}

// UserID достаёт идентификатор аутентифицированного пользователя из контекста.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}

// Email достаёт e-mail аутентифицированного пользователя из контекста.
func Email(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey{}).(string)
	return email, ok
}

// RequireAuth извлекает Bearer-токен из Authorization, валидирует его и кладёт
// идентичность в контекст. Отсутствующий/битый/просроченный access-токен ->
// 401 с машиночитаемым кодом — это триггер прозрачного refresh на клиенте.
func RequireAuth(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			uid, email, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, uid)
			ctx = context.WithValue(ctx, emailKey{}, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
