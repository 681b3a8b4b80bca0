package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/models"
)

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

var (
	// ErrNotFound — пользователь не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности email.
	ErrAlreadyExists = errors.New("already exists")
	// ErrTokenMismatch — сохранённый refresh-токен не совпал с ожидаемым
	// (ротирован, очищен logout'ом или уже использован параллельным запросом).
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// CreateUser создаёт пользователя: назначает ID и таймстемпы.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	// UserByEmail находит пользователя по email вместе с хэшем пароля.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID (без хэша пароля).
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateUser частично обновляет пользователя.
	UpdateUser(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error)
}

// SessionStorage управляет текущим refresh-токеном пользователя.
type SessionStorage interface {
	// SetRefreshToken безусловно перезаписывает refresh-токен.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	// RotateRefreshToken атомарно заменяет expected на next.
	// Возвращает ErrTokenMismatch, если текущее значение отличается от expected.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error
	// ClearRefreshToken очищает refresh-токен (идемпотентно).
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

// Storage задает контракт хранилища учётных данных.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
