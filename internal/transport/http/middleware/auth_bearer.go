package middleware

import (
	"context"
	"net/http"
	"strings"
)

type bearerKey struct{}

// AuthBearer извлекает Bearer-токен из Authorization и кладёт «сырой» токен в контекст.
// Проверку подписи выполняет сервис.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "

			auth := r.Header.Get("Authorization")
			if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
				if token := strings.TrimSpace(auth[len(prefix):]); token != "" {
					r = r.WithContext(context.WithValue(r.Context(), bearerKey{}, token))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken возвращает токен, положенный AuthBearer.
func BearerToken(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(bearerKey{}).(string)
	return t, ok && t != ""
}
