package channels

import (
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/ocalt/internal/logger"
)

// ErrorDetails - универсальный интерфейс для детализации ошибок каналов
type ErrorDetails interface {
	// Error возвращает текстовое описание ошибки
	Error() string

	// IsRetryable указывает, является ли ошибка временной
	IsRetryable() bool

	// RetryAfter возвращает задержку, которую просит API
	RetryAfter() time.Duration

	// LogFields возвращает поля для структурированного логирования
	LogFields() []logger.Field
}

// TelegramErrorDetails - детализация ошибки Telegram Bot API
type TelegramErrorDetails struct {
	ErrorCode     int    // Код ошибки (400, 429, 403 и т.д.)
	Description   string // Описание ошибки от Telegram
	RetryAfterSec int    // Задержка в секундах (для rate limiting)
	ChatID        int64
}

func (d *TelegramErrorDetails) Error() string {
	return fmt.Sprintf("telegram: %d %s", d.ErrorCode, d.Description)
}

func (d *TelegramErrorDetails) IsRetryable() bool {
	return d.ErrorCode == 429 || (d.ErrorCode >= 500 && d.ErrorCode < 600)
}

func (d *TelegramErrorDetails) RetryAfter() time.Duration {
	if d.RetryAfterSec > 0 {
		return time.Duration(d.RetryAfterSec) * time.Second
	}
	if d.ErrorCode >= 500 && d.ErrorCode < 600 {
		return 5 * time.Second
	}
	return 0
}

func (d *TelegramErrorDetails) LogFields() []logger.Field {
	return []logger.Field{
		{Key: "error_code", Value: d.ErrorCode},
		{Key: "error_description", Value: d.Description},
		{Key: "retry_after", Value: d.RetryAfterSec},
		{Key: "chat_id", Value: d.ChatID},
	}
}

// DiscordErrorDetails - детализация ошибки Discord REST API
type DiscordErrorDetails struct {
	StatusCode    int     // HTTP статус
	Code          int     // JSON код ошибки Discord (50001 и т.д.)
	Message       string  // Сообщение из тела ответа
	RetryAfterSec float64 // retry_after из ответа 429
	Route         string
}

func (d *DiscordErrorDetails) Error() string {
	return fmt.Sprintf("discord: %s: %d %s", d.Route, d.StatusCode, d.Message)
}

func (d *DiscordErrorDetails) IsRetryable() bool {
	return d.StatusCode == 429 || d.StatusCode >= 500
}

func (d *DiscordErrorDetails) RetryAfter() time.Duration {
	return time.Duration(d.RetryAfterSec * float64(time.Second))
}

func (d *DiscordErrorDetails) LogFields() []logger.Field {
	return []logger.Field{
		{Key: "status_code", Value: d.StatusCode},
		{Key: "discord_code", Value: d.Code},
		{Key: "error_description", Value: d.Message},
		{Key: "route", Value: d.Route},
	}
}

// LogFields возвращает поля ошибки для лога; для ErrorDetails - подробные
func LogFields(err error) []logger.Field {
	var d ErrorDetails
	if errors.As(err, &d) {
		return d.LogFields()
	}
	return nil
}
