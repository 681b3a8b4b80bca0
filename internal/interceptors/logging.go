// interceptors содержит серверные gRPC-интерсепторы ops-контура:
// логирование, перехват паник и дедлайн по умолчанию.
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// MetadataRequestID — ключ metadata с идентификатором запроса.
const MetadataRequestID = "x-request-id"

// UnaryLogging кладёт request-scoped логгер в контекст и пишет одну запись
// msg="grpc" на вызов: code и dur. Коды Internal/Unknown/DataLoss пишутся уровнем Error.
func UnaryLogging(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		l := scoped(ctx, base, info.FullMethod)
		resp, err := handler(log.Into(ctx, l), req)
		record(ctx, l, err, start)

		return resp, err
	}
}

// StreamLogging — то же для стриминговых вызовов (health Watch).
func StreamLogging(base *slog.Logger) grpc.StreamServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := ss.Context()

		l := scoped(ctx, base, info.FullMethod)
		err := handler(srv, &ctxStream{ServerStream: ss, ctx: log.Into(ctx, l)})
		record(ctx, l, err, start)

		return err
	}
}

func scoped(ctx context.Context, base *slog.Logger, method string) *slog.Logger {
	var rid string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(MetadataRequestID); len(v) > 0 && v[0] != "" {
			rid = v[0]
		}
	}
	if rid == "" {
		rid = uuid.NewString()
	}

	peerAddr := "-"
	if p, ok := peer.FromContext(ctx); ok && p != nil && p.Addr != nil {
		peerAddr = p.Addr.String()
	}

	return base.With(
		slog.String("request_id", rid),
		slog.String("method", method),
		slog.String("peer", peerAddr),
	)
}

func record(ctx context.Context, l *slog.Logger, err error, start time.Time) {
	code := status.Code(err)

	level := slog.LevelInfo
	switch code {
	case codes.Internal, codes.Unknown, codes.DataLoss:
		level = slog.LevelError
	}

	l.LogAttrs(ctx, level, "grpc",
		slog.String("code", code.String()),
		slog.Duration("dur", time.Since(start)),
	)
}

// ctxStream подменяет контекст стрима.
type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *ctxStream) Context() context.Context { return s.ctx }
