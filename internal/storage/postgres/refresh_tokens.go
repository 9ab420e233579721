package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vostrikovaa/tourdesk/internal/models"
	"github.com/vostrikovaa/tourdesk/internal/storage"
)

// SaveRefreshToken регистрирует выпущенный refresh-токен в реестре.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
        INSERT INTO refresh_tokens(token_id, user_id, issued_at, expires_at, revoked, revoked_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := s.db.Exec(ctx, query,
		token.TokenID,
		token.UserID,
		token.IssuedAt,
		token.ExpiresAt,
		token.Revoked,
		token.RevokedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByID находит запись реестра по jti.
func (s *Storage) RefreshTokenByID(ctx context.Context, tokenID uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByID"

	query := `
        SELECT token_id, user_id, issued_at, expires_at, revoked, revoked_at
        FROM refresh_tokens
        WHERE token_id = $1
    `

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, tokenID).Scan(
		&token.TokenID,
		&token.UserID,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.Revoked,
		&token.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RevokeRefreshTokenIfActive пытается отозвать refresh-токен, если он ещё
// не был отозван. Повторный отзыв — no-op, а не ошибка.
func (s *Storage) RevokeRefreshTokenIfActive(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	const op = "storage.postgres.RevokeRefreshTokenIfActive"

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = now()
		WHERE token_id = $1 AND revoked = FALSE
		RETURNING user_id
	`

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, upd, tokenID).Scan(&userID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// UPDATE не нашёл активной строки: различаем "уже отозван" и "нет в реестре".
	const sel = `
		SELECT revoked
		FROM refresh_tokens
		WHERE token_id = $1
	`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, tokenID).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RotateRefreshToken в одной транзакции отзывает старый токен и регистрирует
// преемника. Условный UPDATE решает гонку двух ротаций одного oldID: строка
// revoked=FALSE достаётся ровно одной транзакции, проигравшая видит 0
// затронутых строк, и её преемник не регистрируется.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldID uuid.UUID, next *models.RefreshToken) (bool, error) {
	const op = "storage.postgres.RotateRefreshToken"

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = now()
		WHERE token_id = $1 AND revoked = FALSE
	`

	cmdTag, err := tx.Exec(ctx, upd, oldID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		const sel = `
			SELECT revoked
			FROM refresh_tokens
			WHERE token_id = $1
		`

		var revoked bool
		if err := tx.QueryRow(ctx, sel, oldID).Scan(&revoked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
			}

			return false, fmt.Errorf("%s: %w", op, err)
		}

		// Уже отозван конкурентной ротацией или logout'ом: проигрыш гонки.
		return false, nil
	}

	const ins = `
        INSERT INTO refresh_tokens(token_id, user_id, issued_at, expires_at, revoked, revoked_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err = tx.Exec(ctx, ins,
		next.TokenID,
		next.UserID,
		next.IssuedAt,
		next.ExpiresAt,
		next.Revoked,
		next.RevokedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// DeleteExpiredTokens удаляет все просроченные записи реестра.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at <= $1
    `

	cmdTag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}
