package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/migrator"
	"github.com/stackseed/auth-service/internal/models"
	"github.com/stackseed/auth-service/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты пакета postgres:
// - поднимают реальный PostgreSQL через testcontainers-go (postgres:16-alpine);
// - применяют встроенные миграции через internal/migrator;
// - проверяют CRUD пользователя, уникальность email (CITEXT) и CAS-ротацию refresh-токена.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// startPostgres поднимает временный PostgreSQL и возвращает хранилище и функцию очистки.
// Без GO_TEST_INTEGRATION тест пропускается.
func startPostgres(t *testing.T) (*Storage, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	m, err := migrator.New(dsn)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	st, err := New(ctx, dsn, PoolOptions{MaxConns: 4})
	require.NoError(t, err)

	cleanup := func() {
		st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

func newUser(email string) *models.User {
	return &models.User{
		Name:         "Ann",
		Email:        email,
		PasswordHash: "hash",
	}
}

// TestIntegration_CreateUser_And_Lookups_OK — happy-path: создание и поиск по email/ID.
func TestIntegration_CreateUser_And_Lookups_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	created, err := st.CreateUser(ctx, newUser("ann@example.com"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	byEmail, err := st.UserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)
	require.Equal(t, "hash", byEmail.PasswordHash)
	require.WithinDuration(t, created.CreatedAt, byEmail.CreatedAt, time.Second)

	byID, err := st.UserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Ann", byID.Name)
	require.Empty(t, byID.PasswordHash)
}

// TestIntegration_CreateUser_UniqueEmail_CaseInsensitive_Violation — конфликт по email
// при различии только в регистре.
func TestIntegration_CreateUser_UniqueEmail_CaseInsensitive_Violation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	_, err := st.CreateUser(ctx, newUser("user@example.com"))
	require.NoError(t, err)

	_, err = st.CreateUser(ctx, newUser("USER@EXAMPLE.COM"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

// TestIntegration_NotFound — отсутствующие записи дают storage.ErrNotFound.
func TestIntegration_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	_, err := st.UserByEmail(ctx, "absent@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UpdateUser(ctx, uuid.New(), models.UserUpdate{})
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, st.SetRefreshToken(ctx, uuid.New(), "x"), storage.ErrNotFound)
	require.ErrorIs(t, st.ClearRefreshToken(ctx, uuid.New()), storage.ErrNotFound)
	require.ErrorIs(t, st.RotateRefreshToken(ctx, uuid.New(), "a", "b"), storage.ErrNotFound)
}

// TestIntegration_UpdateUser_Partial — nil-поля не меняются, пустой токен пишется как NULL.
func TestIntegration_UpdateUser_Partial(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u, err := st.CreateUser(ctx, newUser("upd@example.com"))
	require.NoError(t, err)

	name := "Bob"
	token := "rt"
	got, err := st.UpdateUser(ctx, u.ID, models.UserUpdate{Name: &name, RefreshToken: &token})
	require.NoError(t, err)
	require.Equal(t, "Bob", got.Name)
	require.Equal(t, "upd@example.com", got.Email)
	require.Equal(t, "rt", got.RefreshToken)

	empty := ""
	got, err = st.UpdateUser(ctx, u.ID, models.UserUpdate{RefreshToken: &empty})
	require.NoError(t, err)
	require.Empty(t, got.RefreshToken)
	require.Equal(t, "Bob", got.Name)
}

// TestIntegration_RotateRefreshToken_Flow — CAS: старое значение после ротации и после
// очистки не принимается.
func TestIntegration_RotateRefreshToken_Flow(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u, err := st.CreateUser(ctx, newUser("rot@example.com"))
	require.NoError(t, err)

	// NULL в БД не совпадает ни с каким expected.
	require.ErrorIs(t, st.RotateRefreshToken(ctx, u.ID, "", "x"), storage.ErrTokenMismatch)

	require.NoError(t, st.SetRefreshToken(ctx, u.ID, "v1"))
	require.NoError(t, st.RotateRefreshToken(ctx, u.ID, "v1", "v2"))
	require.ErrorIs(t, st.RotateRefreshToken(ctx, u.ID, "v1", "v3"), storage.ErrTokenMismatch)

	require.NoError(t, st.ClearRefreshToken(ctx, u.ID))
	require.NoError(t, st.ClearRefreshToken(ctx, u.ID))
	require.ErrorIs(t, st.RotateRefreshToken(ctx, u.ID, "v2", "v3"), storage.ErrTokenMismatch)
}

// TestIntegration_RotateRefreshToken_Concurrent — из параллельных ротаций одного токена
// успешна ровно одна.
func TestIntegration_RotateRefreshToken_Concurrent(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u, err := st.CreateUser(ctx, newUser("race@example.com"))
	require.NoError(t, err)
	require.NoError(t, st.SetRefreshToken(ctx, u.ID, "shared"))

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := st.RotateRefreshToken(ctx, u.ID, "shared", uuid.NewString()); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}

// TestIntegration_ContextCanceled — отменённый контекст «просачивается» в ошибки.
func TestIntegration_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.UserByEmail(ctx, "user@example.com")
	require.ErrorIs(t, err, context.Canceled)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)
}
