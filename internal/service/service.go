// service содержит бизнес-логику auth-ядра tourdesk:
// аутентификацию сотрудников бэк-офиса, выпуск/проверку токенов,
// ротацию refresh-токенов и работу с реестром через интерфейсы storage.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования из разных горутин при условии, что
//     переданное хранилище (storage.Storage) потокобезопасно.
//   - Корректность ротации обеспечивается атомарной транзакцией в
//     хранилище, а не блокировками в процессе: сервис может работать
//     в нескольких экземплярах над одной БД.
//   - Ошибки возвращаются как сентинелы и маппятся HTTP-слоем на статусы
//     (см. комментарии к переменным ниже).
package service

import (
	"errors"

	"github.com/vostrikovaa/tourdesk/internal/cache"
	"github.com/vostrikovaa/tourdesk/internal/config"
	"github.com/vostrikovaa/tourdesk/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// HTTP 401, без ретрая на клиенте.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен некорректен по формату/подписи/виду либо его jti
	// отсутствует в реестре (поддельный или домиграционный). HTTP 401,
	// попытка refresh не предпринимается.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. Для access-токена это
	// штатный триггер прозрачного refresh на клиенте. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — refresh-токен отозван: штатная ротация, logout или
	// попытка повторного использования (replay). Оба случая отклоняются
	// одинаково. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим сотрудником. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику auth-ядра.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
