// service содержит бизнес-логику auth-сервиса: регистрацию, вход,
// ротацию refresh-токенов, выход и проверку access-токенов.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования при условии, что storage.Storage потокобезопасен.
//   - Источник истины о текущей сессии — хранилище: ротация refresh-токена
//     выполняется условным обновлением (compare-and-swap) в одной записи.
//   - Наружу возвращаются только ошибки из списка ниже; ошибки хранилища и
//     криптографии логируются и сворачиваются в ErrInternal.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stackseed/auth-service/internal/cache"
	"github.com/stackseed/auth-service/internal/metrics"
	"github.com/stackseed/auth-service/internal/password"
	"github.com/stackseed/auth-service/internal/pkg/log"
	"github.com/stackseed/auth-service/internal/storage"
	"github.com/stackseed/auth-service/internal/token"
)

var (
	// ErrConflict — e-mail уже занят. Транспорт: HTTP 409.
	ErrConflict = errors.New("user with this email already exists")

	// ErrInvalidCredentials — пользователь не найден или пароль неверен.
	// Обе ветки неразличимы для клиента. Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthorized — refresh/access-токен просрочен, подделан или ротирован.
	// Транспорт: HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal — непредвиденная ошибка хранилища или криптографии.
	// Транспорт: HTTP 500.
	ErrInternal = errors.New("internal error")
)

// Имена операций для логов и метрик.
const (
	opRegister     = "register"
	opLogin        = "login"
	opRefresh      = "refresh"
	opLogout       = "logout"
	opAuthenticate = "authenticate"
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	tokens  *token.Issuer
	hasher  *password.Hasher
	metrics *metrics.Metrics
	cache   cache.SessionCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service. m может быть nil.
func New(st storage.Storage, tokens *token.Issuer, hasher *password.Hasher, m *metrics.Metrics) *Service {
	return &Service{
		storage: st,
		tokens:  tokens,
		hasher:  hasher,
		metrics: m,
	}
}

// SetSessionCache устанавливает кэш сессий (опционально).
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.cache = c
}

// internal логирует исходную ошибку и возвращает ErrInternal.
// Исходная ошибка не попадает в цепочку errors.Is.
func (s *Service) internal(ctx context.Context, name, op string, err error) error {
	log.From(ctx).Error("auth_internal_error",
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	s.metrics.Op(name, metrics.ResultError)

	return fmt.Errorf("%s: %w", op, ErrInternal)
}

// reject учитывает отказ и оборачивает доменную ошибку.
func (s *Service) reject(name, op string, err error) error {
	s.metrics.Op(name, metrics.ResultRejected)
	return fmt.Errorf("%s: %w", op, err)
}
