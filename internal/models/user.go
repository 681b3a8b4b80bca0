package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
// PasswordHash и RefreshToken не сериализуются в JSON: наружу отдаётся
// только PublicUser (см. Public).
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser — «очищенное» представление пользователя для ответов API.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public возвращает представление пользователя без секретов.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserUpdate — частичное обновление пользователя.
// nil-поле означает «не менять»; указатель на пустую строку в RefreshToken
// очищает сохранённый токен.
type UserUpdate struct {
	Name         *string
	Email        *string
	RefreshToken *string
}
