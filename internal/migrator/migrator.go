// migrator применяет встроенные SQL-миграции (golang-migrate, драйвер pgx/v5).
package migrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stackseed/auth-service/migrations"
)

// Migrator — обёртка над golang-migrate для схемы users.
type Migrator struct {
	m *migrate.Migrate
}

// New открывает источник миграций и подключение к базе.
// Схемы postgres:// и postgresql:// переводятся в pgx5://.
func New(dbURL string) (*Migrator, error) {
	const op = "migrator.New"

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("%s: source: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(dbURL))
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Migrator{m: m}, nil
}

// DriverURL переводит URL PostgreSQL в схему драйвера pgx/v5.
func DriverURL(dbURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dbURL, prefix); ok {
			return "pgx5://" + rest
		}
	}

	return dbURL
}

// Up применяет все новые миграции. Отсутствие изменений — не ошибка.
func (m *Migrator) Up() error {
	const op = "migrator.Up"

	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Down откатывает все миграции.
func (m *Migrator) Down() error {
	const op = "migrator.Down"

	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Version возвращает текущую версию схемы; 0, если миграций ещё не было.
func (m *Migrator) Version() (uint, bool, error) {
	const op = "migrator.Version"

	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	return v, dirty, nil
}

// Close освобождает источник и подключение.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
