package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — серверная запись реестра выпущенных refresh-токенов.
// Сам токен (подписанный JWT) на сервере не хранится: запись ведётся
// по его идентификатору (jti) и нужна для аудита и проверки отзыва.
type RefreshToken struct {
	// TokenID — jti выпущенного токена, первичный ключ реестра.
	TokenID uuid.UUID
	// UserID — субъект, которому выпущен токен.
	UserID uuid.UUID
	// IssuedAt — момент выпуска (UTC).
	IssuedAt time.Time
	// ExpiresAt — момент истечения (UTC).
	ExpiresAt time.Time
	// Revoked — токен отозван (ротация, logout или инвалидация админом).
	Revoked bool
	// RevokedAt — момент отзыва; nil, пока токен активен.
	RevokedAt *time.Time
}
