package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// UnaryTimeout навешивает дедлайн d, если клиент не передал свой.
// d <= 0 отключает интерсептор.
func UnaryTimeout(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return handler(ctx, req)
	}
}
