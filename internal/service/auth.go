package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/cache"
	"github.com/stackseed/auth-service/internal/metrics"
	"github.com/stackseed/auth-service/internal/models"
	"github.com/stackseed/auth-service/internal/pkg/log"
	"github.com/stackseed/auth-service/internal/pkg/redact"
	"github.com/stackseed/auth-service/internal/storage"
	"github.com/stackseed/auth-service/internal/token"
)

// Register регистрирует пользователя и открывает для него сессию.
// Вход должен быть уже проверен пакетом validation.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	_, err := s.storage.UserByEmail(ctx, in.Email)
	if err == nil {
		lg.Info("register_email_taken", slog.String("email", redact.Email(in.Email)))
		return nil, s.reject(opRegister, op, ErrConflict)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, s.internal(ctx, opRegister, op, err)
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		return nil, s.internal(ctx, opRegister, op, err)
	}

	user, err := s.storage.CreateUser(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		// Параллельная регистрация с тем же email проходит pre-check,
		// но упирается в уникальный индекс.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, s.reject(opRegister, op, ErrConflict)
		}
		return nil, s.internal(ctx, opRegister, op, err)
	}

	pair, err := s.issuePair(user, time.Now())
	if err != nil {
		return nil, s.internal(ctx, opRegister, op, err)
	}

	if err := s.storage.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, s.internal(ctx, opRegister, op, err)
	}
	s.remember(ctx, user.ID, pair.RefreshToken)

	lg.Info("user_registered", slog.String("user_id", user.ID.String()))
	s.metrics.Op(opRegister, metrics.ResultOK)

	return &models.AuthResult{User: user.Public(), Tokens: *pair}, nil
}

// Login проверяет пароль и перезаписывает текущий refresh-токен пользователя.
// Ветки «нет пользователя» и «неверный пароль» выполняют одинаковую bcrypt-работу.
func (s *Service) Login(ctx context.Context, in models.LoginInput) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	user, err := s.storage.UserByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, s.internal(ctx, opLogin, op, err)
		}

		if err := s.hasher.VerifyDummy(ctx, in.Password); err != nil {
			return nil, s.internal(ctx, opLogin, op, err)
		}

		lg.Info("login_rejected", slog.String("email", redact.Email(in.Email)))
		return nil, s.reject(opLogin, op, ErrInvalidCredentials)
	}

	start := time.Now()
	ok, err := s.hasher.Verify(ctx, in.Password, user.PasswordHash)
	s.metrics.ObserveHash(start)
	if err != nil {
		return nil, s.internal(ctx, opLogin, op, err)
	}
	if !ok {
		lg.Info("login_rejected", slog.String("email", redact.Email(in.Email)))
		return nil, s.reject(opLogin, op, ErrInvalidCredentials)
	}

	pair, err := s.issuePair(user, time.Now())
	if err != nil {
		return nil, s.internal(ctx, opLogin, op, err)
	}

	if err := s.storage.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, s.internal(ctx, opLogin, op, err)
	}
	s.remember(ctx, user.ID, pair.RefreshToken)

	lg.Info("user_logged_in", slog.String("user_id", user.ID.String()))
	s.metrics.Op(opLogin, metrics.ResultOK)

	return &models.AuthResult{User: user.Public(), Tokens: *pair}, nil
}

// RefreshAccessToken обменивает действующий refresh-токен на новую пару.
// Просроченный, подделанный и уже ротированный токены неразличимы: ErrUnauthorized.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.RefreshAccessToken"

	lg := log.From(ctx)

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		lg.Info("refresh_rejected", slog.String("reason", reason(err)))
		return nil, s.reject(opRefresh, op, ErrUnauthorized)
	}

	// Дальше все записи, включая internal-ошибки, несут user_id.
	ctx = log.With(ctx, slog.String("user_id", claims.UserID.String()))
	lg = log.From(ctx)

	user, err := s.storage.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_unknown_subject")
			return nil, s.reject(opRefresh, op, ErrUnauthorized)
		}
		return nil, s.internal(ctx, opRefresh, op, err)
	}

	if user.RefreshToken != refreshToken {
		lg.Info("refresh_rejected",
			slog.String("reason", "rotated"),
			slog.String("token", redact.Token(refreshToken)),
		)
		return nil, s.reject(opRefresh, op, ErrUnauthorized)
	}
	s.dropStale(ctx, user.ID, refreshToken)

	pair, err := s.issuePair(user, time.Now())
	if err != nil {
		return nil, s.internal(ctx, opRefresh, op, err)
	}

	if err := s.storage.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrTokenMismatch) || errors.Is(err, storage.ErrNotFound) {
			lg.Info("refresh_rejected",
				slog.String("reason", "lost_race"),
				slog.String("token", redact.Token(refreshToken)),
			)
			return nil, s.reject(opRefresh, op, ErrUnauthorized)
		}
		return nil, s.internal(ctx, opRefresh, op, err)
	}
	s.remember(ctx, user.ID, pair.RefreshToken)

	lg.Debug("refresh_rotated")
	s.metrics.Op(opRefresh, metrics.ResultOK)

	return pair, nil
}

// Logout очищает сохранённый refresh-токен пользователя.
// Повторный выход и неизвестный пользователь — не ошибка.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.auth.Logout"

	if err := s.storage.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return s.internal(ctx, opLogout, op, err)
	}
	s.forget(ctx, userID)

	log.From(ctx).Info("user_logged_out", slog.String("user_id", userID.String()))
	s.metrics.Op(opLogout, metrics.ResultOK)

	return nil
}

// LogoutByRefreshToken определяет пользователя по refresh-токену и вызывает Logout.
// Невалидный токен означает, что сессии уже нет: возвращается nil.
func (s *Service) LogoutByRefreshToken(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		log.From(ctx).Debug("logout_without_session", slog.String("reason", reason(err)))
		s.metrics.Op(opLogout, metrics.ResultOK)
		return nil
	}

	return s.Logout(ctx, claims.UserID)
}

// Authenticate проверяет access-токен и возвращает публичные данные пользователя.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error) {
	const op = "service.auth.Authenticate"

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		log.From(ctx).Debug("access_rejected", slog.String("reason", reason(err)))
		return nil, s.reject(opAuthenticate, op, ErrUnauthorized)
	}

	user, err := s.storage.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.reject(opAuthenticate, op, ErrUnauthorized)
		}
		return nil, s.internal(ctx, opAuthenticate, op, err)
	}

	s.metrics.Op(opAuthenticate, metrics.ResultOK)

	pub := user.Public()
	return &pub, nil
}

// UserIDFromAccess проверяет только подпись и срок access-токена.
func (s *Service) UserIDFromAccess(accessToken string) (uuid.UUID, error) {
	const op = "service.auth.UserIDFromAccess"

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return claims.UserID, nil
}

// RefreshTTL возвращает время жизни refresh-токена (для Max-Age куки).
func (s *Service) RefreshTTL() time.Duration {
	return s.tokens.RefreshTTL()
}

func (s *Service) hash(ctx context.Context, plain string) (string, error) {
	start := time.Now()
	defer s.metrics.ObserveHash(start)

	return s.hasher.Hash(ctx, plain)
}

func (s *Service) issuePair(user *models.User, now time.Time) (*models.TokenPair, error) {
	const op = "service.auth.issuePair"

	access, accessExp, err := s.tokens.IssueAccess(token.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// dropStale удаляет из кэша дайджест, расходящийся с токеном, который
// хранилище считает текущим. Записи в кэш не упорядочены с записями в
// хранилище, поэтому расхождение кэша само по себе не повод для отказа.
func (s *Service) dropStale(ctx context.Context, userID uuid.UUID, refreshToken string) {
	if s.cache == nil {
		return
	}

	digest, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		log.From(ctx).Warn("session_cache_get_failed", slog.String("err", err.Error()))
		return
	}

	if ok && digest != cache.Digest(refreshToken) {
		log.From(ctx).Warn("session_cache_stale", slog.String("user_id", userID.String()))
		s.forget(ctx, userID)
	}
}

func (s *Service) remember(ctx context.Context, userID uuid.UUID, refreshToken string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, userID, refreshToken, s.tokens.RefreshTTL()); err != nil {
		log.From(ctx).Warn("session_cache_set_failed", slog.String("err", err.Error()))
		// Старый дайджест в кэше отклонял бы новый токен.
		s.forget(ctx, userID)
	}
}

func (s *Service) forget(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, userID); err != nil {
		log.From(ctx).Warn("session_cache_delete_failed", slog.String("err", err.Error()))
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrSignature):
		return "signature"
	default:
		return "malformed"
	}
}
