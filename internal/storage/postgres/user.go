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
	"github.com/stackseed/auth-service/internal/models"
	"github.com/stackseed/auth-service/internal/storage"
)

// CreateUser создает нового пользователя в БД.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage.postgres.CreateUser"

	now := time.Now().UTC()
	u := *user
	u.ID = uuid.New()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users(id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.CreatedAt,
		u.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

// UserByEmail находит пользователя по email (вместе с хэшем пароля).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `
		SELECT id, name, email, password_hash, COALESCE(refresh_token, ''), created_at, updated_at
		FROM users
		WHERE email = $1
	`

	var user models.User
	err := s.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

// UserByID находит пользователя по ID. Хэш пароля не читается.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT id, name, email, COALESCE(refresh_token, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user, err := scanPublic(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUser частично обновляет пользователя; nil-поля не меняются.
// Пустая строка в RefreshToken записывается как NULL.
func (s *Storage) UpdateUser(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.postgres.UpdateUser"

	query := `
		UPDATE users
		SET name          = COALESCE($2, name),
		    email         = COALESCE($3, email),
		    refresh_token = CASE WHEN $4::boolean THEN NULLIF($5, '') ELSE refresh_token END,
		    updated_at    = $6
		WHERE id = $1
		RETURNING id, name, email, COALESCE(refresh_token, ''), created_at, updated_at
	`

	var token string
	if upd.RefreshToken != nil {
		token = *upd.RefreshToken
	}

	user, err := scanPublic(s.db.QueryRow(ctx, query,
		id,
		upd.Name,
		upd.Email,
		upd.RefreshToken != nil,
		token,
		time.Now().UTC(),
	))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func scanPublic(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
