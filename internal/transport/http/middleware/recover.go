package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stackseed/auth-service/internal/pkg/log"
	apierrors "github.com/stackseed/auth-service/internal/transport/http/errors"
)

// Recover перехватывает panic и отвечает 500 в общем формате.
// Детали паники не утекают на клиент; остальные запросы продолжают обслуживаться.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandler — штатный способ оборвать ответ.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).
					LogAttrs(r.Context(), slog.LevelError, "panic",
						slog.String("path", r.URL.Path),
						slog.Any("reason", rec),
					)
				apierrors.WriteError(w, r, fmt.Errorf("panic: %v", rec))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
