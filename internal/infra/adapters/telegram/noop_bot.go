package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev runs.
// It logs messages instead of sending real Telegram messages.
type NoopBotAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger, delay: 10 * time.Millisecond}
}

// SendMessage logs the message after a short simulated round trip.
func (b *NoopBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	select {
	case <-time.After(b.delay):
	case <-ctx.Done():
		return &adapter.SendError{Kind: adapter.SendTransient, Reason: ctx.Err().Error(), Err: ctx.Err()}
	}
	ev := logging.With(ctx, b.log).Info().
		Int64("chat_id", params.ChatID).
		Str("text", logging.Preview(params.Text, 80))
	if params.ReplyMarkup != nil {
		ev = ev.Int("button_rows", len(params.ReplyMarkup.Buttons))
	}
	ev.Msg("noop telegram send")
	return nil
}

func (b *NoopBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	b.log.Debug().Int64("chat_id", chatID).Bool("is_admin", isAdmin).Msg("noop set menu commands")
	return nil
}
