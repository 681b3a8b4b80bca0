package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/models"
)

// RefreshCookie — имя куки с refresh-токеном.
const RefreshCookie = "refreshToken"

// AuthService — то, что хендлерам нужно от сервиса.
type AuthService interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.AuthResult, error)
	Login(ctx context.Context, in models.LoginInput) (*models.AuthResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	LogoutByRefreshToken(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
	UserIDFromAccess(accessToken string) (uuid.UUID, error)
}

// CookieOptions — атрибуты куки с refresh-токеном.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc    AuthService
	cookie CookieOptions
}

// New создаёт Handlers.
func New(svc AuthService, cookie CookieOptions) *Handlers {
	return &Handlers{svc: svc, cookie: cookie}
}

// apiResponse — успешный ответ в общем формате.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func respond(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// readBody читает тело целиком; лимит задаёт middleware.BodyLimit.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(r.Body)
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		Expires:  time.Now().Add(h.cookie.MaxAge),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
