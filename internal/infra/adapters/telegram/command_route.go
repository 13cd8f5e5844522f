package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kasboi/payecards-bot/internal/application"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
)

const historyCommandLimit = 5

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    r.handleStartCommand,
		"register": r.handleRegisterCommand,
		"cancel":   r.handleCancelCommand,
		"crypto":   r.handleCryptoCommand,
		"price":    r.handleCryptoCommand,
		"help":     r.handleHelpCommand,

		"broadcast":         r.adminOnly(r.handleBroadcastCommand),
		"cancel_broadcast":  r.adminOnly(r.handleCancelBroadcastCommand),
		"broadcast_history": r.adminOnly(r.handleBroadcastHistoryCommand),
		"stats":             r.adminOnly(r.handleStatsCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		isAdmin, err := r.facade.IsAdmin(ctx, message.From.ID)
		if err != nil {
			logging.With(ctx, r.log).Error().Err(err).Msg("admin lookup failed")
			return r.reply(ctx, message.Chat.ID, r.facade.ErrorReply(err))
		}
		if !isAdmin {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			return r.send(ctx, message.Chat.ID, r.facade.T("admin_only"))
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

// answer sends rep, or the mapped error text when err is set.
func (r *RealTelegramBotAdapter) answer(ctx context.Context, chatID int64, rep application.Reply, err error) error {
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("command failed")
		return r.reply(ctx, chatID, r.facade.ErrorReply(err))
	}
	return r.reply(ctx, chatID, rep)
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	isAdmin, err := r.facade.IsAdmin(ctx, message.From.ID)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("admin lookup failed")
	}
	if err := r.SetMenuCommands(ctx, message.Chat.ID, isAdmin); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("failed to set dynamic menu commands")
	}
	rep, err := r.facade.HandleStart(ctx, message.From.ID, message.From.FirstName)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleRegisterCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleRegister(ctx, message.From.ID)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleCancelRegistration(ctx, message.From.ID)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

// handleCryptoCommand shows the coin menu, or a quote when a coin is named.
func (r *RealTelegramBotAdapter) handleCryptoCommand(ctx context.Context, message *tgbotapi.Message) error {
	query := strings.TrimSpace(message.CommandArguments())
	if query == "" {
		return r.reply(ctx, message.Chat.ID, r.facade.HandleCryptoMenu())
	}
	rep, err := r.facade.HandleCryptoPrice(ctx, query)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message.Chat.ID, r.facade.HandleHelp(ctx, message.From.ID))
}

func (r *RealTelegramBotAdapter) handleBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleBroadcastBegin(ctx, message.From.ID)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleCancelBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleBroadcastCancel(ctx, message.From.ID)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleBroadcastHistoryCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleBroadcastHistory(ctx, historyCommandLimit)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleStats(ctx)
	return r.answer(ctx, message.Chat.ID, rep, err)
}

// handleText feeds free text to the broadcast composer or the registration
// dialogue.
func (r *RealTelegramBotAdapter) handleText(ctx context.Context, message *tgbotapi.Message) error {
	profile := model.Profile{FirstName: message.From.FirstName, LastName: message.From.LastName}
	rep, handled, err := r.facade.HandleText(ctx, message.From.ID, profile, message.Text)
	if !handled && err == nil {
		return r.send(ctx, message.Chat.ID, r.facade.T("unknown_command"))
	}
	if err != nil {
		return r.answer(ctx, message.Chat.ID, rep, err)
	}

	sendErr := r.reply(ctx, message.Chat.ID, rep)
	if se, ok := adapter.AsSendError(sendErr); ok && se.Kind == adapter.SendRejected && rep.DraftPreview {
		return r.reopenDraft(ctx, message, sendErr)
	}
	return sendErr
}

// reopenDraft handles a draft whose markup Telegram refused to render: the
// session returns to composing and the admin is told to fix the text.
func (r *RealTelegramBotAdapter) reopenDraft(ctx context.Context, message *tgbotapi.Message, cause error) error {
	logging.With(ctx, r.log).Warn().Err(cause).Msg("broadcast draft preview rejected")
	rep, handled, err := r.facade.HandleBroadcastDraftRejected(ctx, message.From.ID)
	if err != nil {
		return r.answer(ctx, message.Chat.ID, rep, err)
	}
	if !handled {
		return cause
	}
	return r.reply(ctx, message.Chat.ID, rep)
}
