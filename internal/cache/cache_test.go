package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestDigest(t *testing.T) {
	t.Parallel()

	a := Digest("token-a")
	require.Len(t, a, 64)
	require.Equal(t, a, Digest("token-a"))
	require.NotEqual(t, a, Digest("token-b"))
	require.NotContains(t, a, "token-a")
}

func TestNewRedisCache_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache(context.Background(), "not a url", "")
	require.Error(t, err)
}

// startRedis поднимает Redis в контейнере и возвращает URL.
func startRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestIntegration_RedisCache(t *testing.T) {
	url := startRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, url, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	uid := uuid.New()

	_, ok, err := c.Get(ctx, uid)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, uid, "rt-1", time.Minute))

	got, ok, err := c.Get(ctx, uid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Digest("rt-1"), got)

	require.NoError(t, c.Set(ctx, uid, "rt-2", time.Minute))
	got, _, err = c.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, Digest("rt-2"), got)

	require.NoError(t, c.Delete(ctx, uid))
	require.NoError(t, c.Delete(ctx, uid))

	_, ok, err = c.Get(ctx, uid)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIntegration_RedisCache_TTL(t *testing.T) {
	url := startRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, url, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	uid := uuid.New()
	require.NoError(t, c.Set(ctx, uid, "rt", 100*time.Millisecond))

	require.Eventually(t, func() bool {
		_, ok, err := c.Get(ctx, uid)
		return err == nil && !ok
	}, 3*time.Second, 50*time.Millisecond)
}
