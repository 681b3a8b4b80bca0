package interceptors

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/pkg/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// capHandler — минимальный slog.Handler: последняя запись и счётчик по сообщениям.
type capHandler struct {
	mu      sync.Mutex
	base    []slog.Attr
	lastMsg string
	lastLvl slog.Level
	attrs   map[string]any
	count   map[string]int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any, len(h.base)+8)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})
	if h.count == nil {
		h.count = make(map[string]int)
	}
	h.count[r.Message]++
	h.lastMsg = r.Message
	h.lastLvl = r.Level
	h.attrs = out
	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.base = append(h.base, attrs...)
	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func TestUnaryLogging_RequestIDAndPeer(t *testing.T) {
	t.Parallel()

	h := &capHandler{}

	md := metadata.New(map[string]string{MetadataRequestID: "rid-123"})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	ctx = peer.NewContext(ctx, &peer.Peer{
		Addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50051},
	})
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := UnaryLogging(slog.New(h))(ctx, "req", info, func(ctx context.Context, _ any) (any, error) {
		log.From(ctx).Info("handler")
		time.Sleep(2 * time.Millisecond)
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)

	require.Equal(t, 1, h.count["handler"])
	require.Equal(t, "grpc", h.lastMsg)
	require.Equal(t, slog.LevelInfo, h.lastLvl)
	require.Equal(t, "rid-123", h.attrs["request_id"])
	require.Equal(t, info.FullMethod, h.attrs["method"])
	require.Equal(t, "127.0.0.1:50051", h.attrs["peer"])
	require.Equal(t, "OK", h.attrs["code"])

	d, ok := h.attrs["dur"].(time.Duration)
	require.True(t, ok)
	require.Greater(t, d, time.Duration(0))
}

func TestUnaryLogging_GeneratedIDAndErrorLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		code  string
		level slog.Level
	}{
		{name: "invalid_argument", err: status.Error(codes.InvalidArgument, "bad"), code: "InvalidArgument", level: slog.LevelInfo},
		{name: "internal", err: status.Error(codes.Internal, "boom"), code: "Internal", level: slog.LevelError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &capHandler{}
			info := &grpc.UnaryServerInfo{FullMethod: "/x/Y"}

			_, err := UnaryLogging(slog.New(h))(context.Background(), nil, info, func(context.Context, any) (any, error) {
				return nil, tt.err
			})
			require.Error(t, err)

			require.Equal(t, tt.code, h.attrs["code"])
			require.Equal(t, tt.level, h.lastLvl)
			require.Equal(t, "-", h.attrs["peer"])

			rid, _ := h.attrs["request_id"].(string)
			_, perr := uuid.Parse(rid)
			require.NoError(t, perr)
		})
	}
}

func TestUnaryRecover(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	info := &grpc.UnaryServerInfo{FullMethod: "/x/Panic"}
	inter := UnaryRecover(slog.New(h))

	resp, err := inter(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	require.Nil(t, resp)
	require.Equal(t, codes.Internal, status.Code(err))
	require.NotContains(t, err.Error(), "boom")

	require.Equal(t, slog.LevelError, h.lastLvl)
	require.Equal(t, "panic_recovered", h.lastMsg)
	require.Equal(t, info.FullMethod, h.attrs["method"])
	stack, _ := h.attrs["stack"].(string)
	require.NotEmpty(t, stack)

	quiet := &capHandler{}
	resp, err = UnaryRecover(slog.New(quiet))(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Empty(t, quiet.lastMsg)
}

func TestUnaryTimeout(t *testing.T) {
	t.Parallel()

	info := &grpc.UnaryServerInfo{FullMethod: "/x/T"}

	const d = 30 * time.Millisecond
	start := time.Now()
	_, err := UnaryTimeout(d)(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, time.Since(start), d)

	parent, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	want, _ := parent.Deadline()

	_, err = UnaryTimeout(time.Millisecond)(parent, nil, info, func(ctx context.Context, _ any) (any, error) {
		got, ok := ctx.Deadline()
		require.True(t, ok)
		require.Equal(t, want, got)
		return nil, nil
	})
	require.NoError(t, err)

	_, err = UnaryTimeout(0)(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		_, ok := ctx.Deadline()
		require.False(t, ok)
		return nil, nil
	})
	require.NoError(t, err)
}

// TestHealthServer_ThroughChain — интерсепторы на настоящем gRPC-сервере (bufconn).
func TestHealthServer_ThroughChain(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	lg := slog.New(h)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryRecover(lg), UnaryLogging(lg), UnaryTimeout(time.Second)),
		grpc.ChainStreamInterceptor(StreamRecover(lg), StreamLogging(lg)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, MetadataRequestID, "rid-health")

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, "grpc", h.lastMsg)
	require.Equal(t, "rid-health", h.attrs["request_id"])
	require.Equal(t, "/grpc.health.v1.Health/Check", h.attrs["method"])
}
