// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимается ошибка сервиса или валидации, на выход:
//   - HTTP-статус;
//   - безопасное message без утечки деталей хранилища и криптографии;
//   - список нарушений полей для ошибок валидации.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stackseed/auth-service/internal/service"
	"github.com/stackseed/auth-service/internal/validation"
)

// Сообщения, которые видит клиент.
const (
	MsgConflict           = "User already exists"
	MsgInvalidCredentials = "Invalid credentials"
	MsgInvalidRefresh     = "Invalid refresh token"
	MsgUnauthorized       = "Unauthorized request"
	MsgPayloadTooLarge    = "Request body too large"
	MsgInternal           = "Internal server error"
)

var (
	// ErrMissingToken — в запросе нет нужного токена (куки, тела или Authorization).
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidRefreshToken — refresh-токен отклонён сервисом.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// ErrorResponse — единый формат ошибки.
type ErrorResponse struct {
	StatusCode int                   `json:"statusCode"`
	Message    string                `json:"message"`
	Errors     validation.Violations `json:"errors,omitempty"`
	Success    bool                  `json:"success"`
	RequestID  string                `json:"requestId,omitempty"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
// nil и неизвестные ошибки дают 500, чтобы не маскировать баг под 200.
func ToHTTP(err error) (int, ErrorResponse) {
	var (
		verr    *validation.ValidationError
		tooBig  *http.MaxBytesError
		status  int
		message string
	)

	switch {
	case err == nil:
		status, message = http.StatusInternalServerError, MsgInternal
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    verr.Error(),
			Errors:     verr.Violations,
		}
	case errors.As(err, &tooBig):
		status, message = http.StatusRequestEntityTooLarge, MsgPayloadTooLarge
	case errors.Is(err, service.ErrConflict):
		status, message = http.StatusConflict, MsgConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, MsgInvalidCredentials
	case errors.Is(err, ErrInvalidRefreshToken):
		status, message = http.StatusUnauthorized, MsgInvalidRefresh
	case errors.Is(err, ErrMissingToken), errors.Is(err, service.ErrUnauthorized):
		status, message = http.StatusUnauthorized, MsgUnauthorized
	default:
		status, message = http.StatusInternalServerError, MsgInternal
	}

	return status, ErrorResponse{StatusCode: status, Message: message}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
