package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:generate mockgen -source=cache.go -destination=../../mocks/mock_cache.go -package=mocks

// SessionCache — минимальный контракт кэша текущей сессии пользователя.
// Хранит только SHA-256 дайджест refresh-токена, сам токен в Redis не попадает.
type SessionCache interface {
	// Get возвращает дайджест текущего refresh-токена и признак его наличия.
	Get(ctx context.Context, userID uuid.UUID) (string, bool, error)
	// Set сохраняет дайджест токена с TTL (обычно время жизни refresh-токена).
	Set(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	// Delete удаляет запись; отсутствие ключа не ошибка.
	Delete(ctx context.Context, userID uuid.UUID) error
	// Close закрывает клиент Redis.
	Close() error
}

// Digest возвращает hex(SHA-256) токена.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:session:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (SessionCache, error) {
	if prefix == "" {
		prefix = "auth:session:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(userID uuid.UUID) string { return c.prefix + userID.String() }

func (c *redisCache) Get(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(userID), Digest(token), ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
