package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vostrikovaa/tourdesk/internal/cache"
	"github.com/vostrikovaa/tourdesk/internal/models"
	"github.com/vostrikovaa/tourdesk/internal/pkg/redact"
	"github.com/vostrikovaa/tourdesk/internal/storage"
	"github.com/vostrikovaa/tourdesk/pkg/log"
)

// RegisterUser регистрирует нового сотрудника и выдаёт первую пару токенов.
func (s *Service) RegisterUser(ctx context.Context, email, fullName, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RegisterUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueTokenPair(ctx, user, uuid.Nil)
}

// LoginUser выполняет вход по email+пароль.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.LoginUser"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Warn("login_wrong_password",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	// Отметка последнего входа не влияет на выдачу токенов.
	if err := s.storage.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		lg.Warn("touch_last_login_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return s.issueTokenPair(ctx, user, uuid.Nil)
}

// RefreshToken обновляет пару токенов по refresh-токену с ротацией:
// предъявленный токен отзывается атомарно с регистрацией преемника.
// Из двух конкурентных refresh с одним и тем же токеном успешной будет
// ровно одна: проигравшая получает ErrTokenRevoked, даже если токен был
// валиден на момент проверки подписи.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshToken"

	lg := log.From(ctx)

	claims, err := s.verifyToken(refreshToken, kindRefresh)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	userID, jti, err := tokenIDs(claims)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkLedger(ctx, jti); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_user_gone",
				slog.String("op", op),
				slog.String("user_id", userID.String()),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueTokenPair(ctx, user, jti)
}

// RevokeToken отзывает refresh-токен (logout). Операция идемпотентна:
// повторный отзыв уже отозванного токена — успех, а не ошибка.
// Просроченный, но подлинный токен тоже принимается: его jti помечается
// отозванным до того, как запись удалит janitor.
func (s *Service) RevokeToken(ctx context.Context, refreshToken string) error {
	const op = "service.auth.RevokeToken"

	lg := log.From(ctx)

	claims, err := s.parseRefreshUnsafe(refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, jti, err := tokenIDs(claims)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.RevokeRefreshTokenIfActive(ctx, jti); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if s.rcache != nil {
		if err := s.rcache.MarkRevoked(ctx, jti); err != nil {
			lg.Warn("cache_mark_revoked_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}

// ValidateToken проверяет access-токен и возвращает данные пользователя.
// Проверка полностью stateless: подпись, срок и вид; реестр не участвует.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (uuid.UUID, string, error) {
	const op = "service.auth.ValidateToken"

	claims, err := s.verifyToken(accessToken, kindAccess)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, claims.Email, nil
}

// DeleteExpiredTokens удаляет просроченные записи реестра (вызывается janitor'ом).
func (s *Service) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "service.auth.DeleteExpiredTokens"

	n, err := s.storage.DeleteExpiredTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// checkLedger проверяет jti по реестру: неизвестный jti отклоняется как
// поддельный, отозванный — как revoked (сюда же попадает replay после ротации).
func (s *Service) checkLedger(ctx context.Context, jti uuid.UUID) error {
	const op = "service.auth.checkLedger"

	lg := log.From(ctx)

	if s.rcache != nil {
		entry, ok, err := s.rcache.Get(ctx, jti)
		if err != nil {
			lg.Warn("cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok && entry.Revoked {
			lg.Warn("refresh_revoked",
				slog.String("op", op),
				slog.String("user_id", entry.UserID.String()),
			)
			return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
		// Кэш-попадание с rev=0 не освобождает от похода в БД: источник
		// истины — реестр, кэш срезает только заведомо отозванные.
	}

	token, err := s.storage.RefreshTokenByID(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_unknown_jti",
				slog.String("op", op),
				slog.String("token", redact.Token()),
			)
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if token.Revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	return nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
// Если oldJTI != uuid.Nil, преемник регистрируется в одной транзакции с
// отзывом предшественника; проигрыш гонки ротации -> ErrTokenRevoked.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, oldJTI uuid.UUID) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.issueTokenPair"

	lg := log.From(ctx)
	now := time.Now().UTC()

	accessToken, _, err := s.issueToken(ctx, user.ID, user.Email, kindAccess, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, refreshJTI, err := s.issueToken(ctx, user.ID, "", kindRefresh, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	record := &models.RefreshToken{
		TokenID:   refreshJTI,
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}

	if oldJTI == uuid.Nil {
		if err := s.storage.SaveRefreshToken(ctx, record); err != nil {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		won, err := s.storage.RotateRefreshToken(ctx, oldJTI, record)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}

		if !won {
			lg.Warn("refresh_rotation_lost_race",
				slog.String("op", op),
				slog.String("user_id", user.ID.String()),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	s.cacheAfterIssue(ctx, oldJTI, record)

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, user.ID, nil
}

// cacheAfterIssue обновляет кэш после выпуска: помечает предшественника
// отозванным и кладёт запись преемника. Ошибки кэша не фатальны.
func (s *Service) cacheAfterIssue(ctx context.Context, oldJTI uuid.UUID, record *models.RefreshToken) {
	if s.rcache == nil {
		return
	}

	const op = "service.auth.cacheAfterIssue"

	lg := log.From(ctx)

	if oldJTI != uuid.Nil {
		if err := s.rcache.MarkRevoked(ctx, oldJTI); err != nil {
			lg.Warn("cache_mark_revoked_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	entry := &cache.RefreshEntry{
		UserID:    record.UserID,
		Revoked:   false,
		ExpiresAt: record.ExpiresAt,
	}
	if err := s.rcache.Set(ctx, record.TokenID, entry, time.Until(record.ExpiresAt)); err != nil {
		lg.Warn("cache_set_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная и цифра.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !(hasLower && hasUpper && hasDigit) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
