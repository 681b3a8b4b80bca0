package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackseed/auth-service/internal/storage"
)

// SetRefreshToken перезаписывает refresh-токен пользователя.
func (s *Storage) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage.postgres.SetRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = $2, updated_at = $3
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// RotateRefreshToken атомарно заменяет refresh-токен, если текущее значение равно expected.
// Условие в WHERE делает операцию compare-and-swap в пределах одной строки:
// из параллельных запросов с одним и тем же токеном успешен ровно один.
// Возвращает:
//
//	nil              — токен заменён;
//	ErrTokenMismatch — пользователь есть, но сохранён другой токен (или NULL);
//	ErrNotFound      — пользователя нет.
func (s *Storage) RotateRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage.postgres.RotateRefreshToken"

	const upd = `
		UPDATE users
		SET refresh_token = $3, updated_at = $4
		WHERE id = $1 AND refresh_token = $2
		RETURNING id
	`

	var got uuid.UUID
	err := s.db.QueryRow(ctx, upd, id, expected, next, time.Now().UTC()).Scan(&got)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}

	const sel = `SELECT 1 FROM users WHERE id = $1`

	var one int
	err = s.db.QueryRow(ctx, sel, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
}

// ClearRefreshToken очищает refresh-токен пользователя. Повторный вызов не ошибка.
func (s *Storage) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ClearRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = NULL, updated_at = $2
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
