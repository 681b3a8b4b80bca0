package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stackseed/auth-service/internal/transport/http/handlers"
	"github.com/stackseed/auth-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger    *slog.Logger
	Timeout   time.Duration
	BasePath  string // например, "/api/v1"; если пустой — роуты регистрируются на корне.
	BodyLimit int64  // 0 — без ограничения.
	Cookie    handlers.CookieOptions
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.AuthService, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.AuthBearer(),         // вынимаем Bearer токен в контекст
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}
	if opts.BodyLimit > 0 {
		root.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	h := handlers.New(svc, opts.Cookie)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh-token", h.RefreshToken)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
}
