package telegram

import (
	"context"

	"github.com/mymmrac/telego"
)

// BotInterface is the part of the Telegram Bot API the adapter uses.
// Tests substitute MockBot.
type BotInterface interface {
	// GetMe returns basic information about the bot.
	GetMe(ctx context.Context) (*telego.User, error)

	// SendMessage sends a text message to a chat.
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)

	// SendChatAction sends a chat action (e.g., typing) to a chat.
	SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error

	// UpdatesViaLongPolling starts long polling for Telegram updates.
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error)
}

type telegoAdapter struct {
	bot *telego.Bot
}

// NewBot creates a BotInterface backed by the real Bot API.
func NewBot(token string) (BotInterface, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, err
	}
	return &telegoAdapter{bot: bot}, nil
}

func (a *telegoAdapter) GetMe(ctx context.Context) (*telego.User, error) {
	return a.bot.GetMe(ctx)
}

func (a *telegoAdapter) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	return a.bot.SendMessage(ctx, params)
}

func (a *telegoAdapter) SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error {
	return a.bot.SendChatAction(ctx, params)
}

func (a *telegoAdapter) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error) {
	return a.bot.UpdatesViaLongPolling(ctx, params, opts...)
}
