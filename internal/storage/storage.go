// storage задаёт контракт персистентного слоя auth-ядра: пользователи
// и реестр refresh-токенов (outstanding/revoked ledger).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vostrikovaa/tourdesk/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/jti).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// TouchLastLogin обновляет отметку последнего входа.
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RefreshTokenStorage ведёт реестр выпущенных refresh-токенов по их jti.
type RefreshTokenStorage interface {
	// SaveRefreshToken регистрирует выпущенный токен в реестре.
	// Вызывается строго до возврата токена клиенту: неизвестный jti
	// на проверке означает поддельный токен.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// RefreshTokenByID находит запись реестра по jti.
	RefreshTokenByID(ctx context.Context, tokenID uuid.UUID) (*models.RefreshToken, error)

	// RevokeRefreshTokenIfActive атомарно помечает токен отозванным, если он
	// ещё активен. Возвращает:
	//   (true, nil)  — токен был активен и отозван этим вызовом;
	//   (false, nil) — токен существует, но уже был отозван (идемпотентно);
	//   (false, ErrNotFound) — jti в реестре нет.
	RevokeRefreshTokenIfActive(ctx context.Context, tokenID uuid.UUID) (bool, error)

	// RotateRefreshToken в одной транзакции отзывает старый токен и
	// регистрирует его преемника. Отзыв условный (revoked = FALSE), поэтому
	// из двух конкурентных ротаций одного oldID выигрывает ровно одна:
	//   (true, nil)  — ротация выполнена, преемник зарегистрирован;
	//   (false, nil) — oldID уже отозван конкурентным вызовом, преемник
	//                  не зарегистрирован;
	//   (false, ErrNotFound) — oldID в реестре нет.
	RotateRefreshToken(ctx context.Context, oldID uuid.UUID, next *models.RefreshToken) (bool, error)

	// DeleteExpiredTokens удаляет просроченные записи реестра и возвращает
	// число удалённых строк.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
