package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/models"
	"github.com/stackseed/auth-service/internal/service"
	apierrors "github.com/stackseed/auth-service/internal/transport/http/errors"
	"github.com/stackseed/auth-service/internal/transport/http/middleware"
	"github.com/stackseed/auth-service/internal/validation"
)

type authData struct {
	User        models.PublicUser `json:"user"`
	AccessToken string            `json:"accessToken"`
}

type accessData struct {
	AccessToken string `json:"accessToken"`
}

type userData struct {
	User models.PublicUser `json:"user"`
}

// Register — POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	in, err := validation.DecodeRegister(body)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken)
	respond(w, http.StatusCreated, authData{User: res.User, AccessToken: res.Tokens.AccessToken},
		"User registered successfully")
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	in, err := validation.DecodeLogin(body)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken)
	respond(w, http.StatusOK, authData{User: res.User, AccessToken: res.Tokens.AccessToken},
		"User logged in successfully")
}

// RefreshToken — POST /auth/refresh-token.
// Токен берётся из куки, иначе из тела {refreshToken}; непустое тело валидируется всегда.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshTokenFrom(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	pair, err := h.svc.RefreshAccessToken(r.Context(), raw)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			err = apierrors.ErrInvalidRefreshToken
		}
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	respond(w, http.StatusOK, accessData{AccessToken: pair.AccessToken}, "Access token refreshed")
}

// Logout — POST /auth/logout.
// Пользователь определяется по Bearer access-токену, иначе по refresh-куке.
// Без сессии выход всё равно успешен, кука очищается.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var err error
	if uid, ok := h.bearerUser(r); ok {
		err = h.svc.Logout(ctx, uid)
	} else if c, cerr := r.Cookie(RefreshCookie); cerr == nil && c.Value != "" {
		err = h.svc.LogoutByRefreshToken(ctx, c.Value)
	}
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	respond(w, http.StatusOK, struct{}{}, "User logged out successfully")
}

// Me — GET /auth/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.BearerToken(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrMissingToken)
		return
	}

	u, err := h.svc.Authenticate(r.Context(), access)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	respond(w, http.StatusOK, userData{User: *u}, "User profile")
}

// refreshTokenFrom проверяет тело, если оно есть, и выбирает токен:
// кука приоритетнее тела.
func (h *Handlers) refreshTokenFrom(r *http.Request) (string, error) {
	body, err := readBody(r)
	if err != nil {
		return "", err
	}

	var fromBody string
	if len(bytes.TrimSpace(body)) > 0 {
		in, err := validation.DecodeRefresh(body)
		if err != nil {
			return "", err
		}
		fromBody = in.RefreshToken
	}

	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if fromBody == "" {
		return "", apierrors.ErrMissingToken
	}

	return fromBody, nil
}

// bearerUser возвращает владельца Bearer access-токена, если подпись и срок валидны.
func (h *Handlers) bearerUser(r *http.Request) (uuid.UUID, bool) {
	access, ok := middleware.BearerToken(r.Context())
	if !ok {
		return uuid.Nil, false
	}

	uid, err := h.svc.UserIDFromAccess(access)
	if err != nil {
		return uuid.Nil, false
	}

	return uid, true
}
