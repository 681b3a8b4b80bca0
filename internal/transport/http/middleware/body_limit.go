package middleware

import "net/http"

// BodyLimit ограничивает размер тела запроса; чтение сверх лимита
// возвращает *http.MaxBytesError. Значение <=0 делает мидлвар no-op.
func BodyLimit(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
