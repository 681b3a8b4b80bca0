package models

// RegisterInput — проверенные данные регистрации.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput — проверенные данные входа.
type LoginInput struct {
	Email    string
	Password string
}

// RefreshInput — refresh-токен из тела запроса.
type RefreshInput struct {
	RefreshToken string
}
