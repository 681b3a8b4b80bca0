package validation

import "github.com/stackseed/auth-service/internal/models"

var (
	// RegisterSchema — тело POST /auth/register.
	RegisterSchema = Schema{
		{Name: "name", Label: "Name", Required: true, Min: 2, Max: 50, Trim: true},
		{Name: "email", Label: "Email", Required: true, Email: true, Trim: true},
		{Name: "password", Label: "Password", Required: true, Min: 6, Max: 100},
	}

	// LoginSchema — тело POST /auth/login.
	LoginSchema = Schema{
		{Name: "email", Label: "Email", Required: true, Email: true, Trim: true},
		{Name: "password", Label: "Password", Required: true},
	}

	// RefreshSchema — тело POST /auth/refresh-token.
	RefreshSchema = Schema{
		{Name: "refreshToken", Label: "Refresh token", Required: true, Trim: true},
	}
)

// DecodeRegister разбирает и проверяет тело регистрации.
func DecodeRegister(body []byte) (models.RegisterInput, error) {
	v, err := decode(body, RegisterSchema)
	if err != nil {
		return models.RegisterInput{}, err
	}

	return models.RegisterInput{Name: v["name"], Email: v["email"], Password: v["password"]}, nil
}

// DecodeLogin разбирает и проверяет тело входа.
func DecodeLogin(body []byte) (models.LoginInput, error) {
	v, err := decode(body, LoginSchema)
	if err != nil {
		return models.LoginInput{}, err
	}

	return models.LoginInput{Email: v["email"], Password: v["password"]}, nil
}

// DecodeRefresh разбирает и проверяет тело обновления токена.
func DecodeRefresh(body []byte) (models.RefreshInput, error) {
	v, err := decode(body, RefreshSchema)
	if err != nil {
		return models.RefreshInput{}, err
	}

	return models.RefreshInput{RefreshToken: v["refreshToken"]}, nil
}
