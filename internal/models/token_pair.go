package models

import "time"

// TokenPair — пара токенов, выдаваемая при регистрации/входе/обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT, дополнительно сверяемый с значением,
//     сохранённым у пользователя (ротация);
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult — результат регистрации/входа.
type AuthResult struct {
	User   PublicUser
	Tokens TokenPair
}
