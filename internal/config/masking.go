package config

import (
	"strings"
)

// maskSecret маскирует секрет, оставляя только первые 4 и последние 4 символа
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// MaskToken маскирует токен канала для вывода в логах и `config validate`.
// Для Telegram bot_id остаётся видимым для диагностики.
func MaskToken(token string) string {
	botID, rest, ok := strings.Cut(token, ":")
	if !ok || strings.Contains(rest, ":") {
		return maskSecret(token)
	}
	return botID + ":" + maskSecret(rest)
}
