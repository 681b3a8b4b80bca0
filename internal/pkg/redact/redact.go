// Package redact маскирует персональные данные перед записью в лог.
package redact

import "strings"

// Email оставляет первые две руны локальной части и домен.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	r := []rune(local)
	if len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token скрывает значение токена; пустой токен остаётся пустым.
func Token(s string) string {
	if s == "" {
		return ""
	}

	return "[REDACTED_TOKEN]"
}
