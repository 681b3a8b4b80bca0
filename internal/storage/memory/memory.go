// memory — хранилище пользователей в памяти процесса.
// Используется в окружении local и в тестах; все операции сериализуются
// одним мьютексом, поэтому ротация refresh-токена атомарна.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/models"
	"github.com/stackseed/auth-service/internal/storage"
)

type Storage struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:   make(map[uuid.UUID]models.User),
		byEmail: make(map[string]uuid.UUID),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser создает нового пользователя.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage.memory.CreateUser"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	now := s.now()
	u := *user
	u.ID = uuid.New()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.byEmail[key] = u.ID

	return &u, nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u := s.users[id]
	return &u, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.PasswordHash = ""
	return &u, nil
}

// UpdateUser частично обновляет пользователя.
func (s *Storage) UpdateUser(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.memory.UpdateUser"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if upd.Email != nil {
		newKey := emailKey(*upd.Email)
		oldKey := emailKey(u.Email)
		if owner, taken := s.byEmail[newKey]; taken && owner != id {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = id
		u.Email = *upd.Email
	}

	if upd.Name != nil {
		u.Name = *upd.Name
	}

	if upd.RefreshToken != nil {
		u.RefreshToken = *upd.RefreshToken
	}

	u.UpdatedAt = s.now()
	s.users[id] = u

	u.PasswordHash = ""
	return &u, nil
}

// SetRefreshToken перезаписывает refresh-токен пользователя.
func (s *Storage) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage.memory.SetRefreshToken"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.RefreshToken = token
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

// RotateRefreshToken заменяет expected на next, если expected всё ещё текущий.
func (s *Storage) RotateRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage.memory.RotateRefreshToken"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if expected == "" || u.RefreshToken != expected {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
	}

	u.RefreshToken = next
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

// ClearRefreshToken очищает refresh-токен пользователя.
func (s *Storage) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	const op = "storage.memory.ClearRefreshToken"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if u.RefreshToken == "" {
		return nil
	}

	u.RefreshToken = ""
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

// Close ничего не делает: ресурсов нет.
func (s *Storage) Close() {}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
