package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/application"
	"github.com/kasboi/payecards-bot/internal/config"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
	red "github.com/kasboi/payecards-bot/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// CommandLimiter throttles inbound commands per user.
type CommandLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to BotFacade.
type RealTelegramBotAdapter struct {
	api         botAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter CommandLimiter
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter authorizes the bot. The adapter can send right
// away; inbound updates need a facade bound with SetFacade.
func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter CommandLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return newAdapter(bot, cfg, rateLimiter, logger), nil
}

func newAdapter(api botAPI, cfg *config.BotConfig, rateLimiter CommandLimiter, logger *zerolog.Logger) *RealTelegramBotAdapter {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	return &RealTelegramBotAdapter{
		api:           api,
		cfg:           cfg,
		rateLimiter:   rateLimiter,
		log:           logger,
		updateWorkers: workers,
	}
}

// SetFacade binds the command handlers. Must be called before StartPolling.
func (r *RealTelegramBotAdapter) SetFacade(facade *application.BotFacade) { r.facade = facade }

// StartPolling blocks until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("bot facade is not set")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Int("worker", id).Msg("telegram update failed")
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				close(updateChan)
				wg.Wait()
				return nil
			}
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SendMessage sends one message. Failures are returned as *adapter.SendError.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return &adapter.SendError{Kind: adapter.SendTransient, Reason: err.Error(), Err: err}
	}
	msg := tgbotapi.NewMessage(params.ChatID, params.Text)
	msg.ParseMode = string(params.ParseMode)
	if params.ReplyMarkup != nil {
		msg.ReplyMarkup = buildMarkup(params.ReplyMarkup)
	}
	if _, err := r.api.Send(msg); err != nil {
		cerr := classifyError(err)
		if se, ok := adapter.AsSendError(cerr); ok {
			metrics.IncTelegramSendError(string(se.Kind))
		}
		return cerr
	}
	return nil
}

var (
	userCommands = []tgbotapi.BotCommand{
		{Command: "start", Description: "Welcome message"},
		{Command: "register", Description: "Register your account"},
		{Command: "crypto", Description: "Cryptocurrency prices"},
		{Command: "help", Description: "Help and commands"},
		{Command: "cancel", Description: "Cancel registration"},
	}
	adminCommands = []tgbotapi.BotCommand{
		{Command: "broadcast", Description: "Send a message to all users"},
		{Command: "cancel_broadcast", Description: "Cancel the pending broadcast"},
		{Command: "broadcast_history", Description: "Recent broadcasts"},
		{Command: "stats", Description: "Bot statistics"},
	}
)

// SetMenuCommands scopes the command menu to one chat; admins also see the
// admin commands.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	cmds := append([]tgbotapi.BotCommand{}, userCommands...)
	if isAdmin {
		cmds = append(cmds, adminCommands...)
	}
	cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...)
	_, err := r.api.Request(cfg)
	return err
}

func buildMarkup(m *adapter.ReplyMarkup) interface{} {
	if !m.IsInline {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(m.Buttons))
		for _, row := range m.Buttons {
			kb := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, btn := range row {
				kb = append(kb, tgbotapi.NewKeyboardButton(btn.Text))
			}
			rows = append(rows, kb)
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.ResizeKeyboard = true
		return keyboard
	}
	return inlineKeyboard(m.Buttons)
}

// inlineKeyboard builds inline rows. A button opens URL when set, otherwise
// it sends Data, falling back to its label.
func inlineKeyboard(buttons [][]adapter.Button) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, rep application.Reply) error {
	return r.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:      chatID,
		Text:        rep.Text,
		ParseMode:   rep.ParseMode,
		ReplyMarkup: rep.Markup,
	})
}

func (r *RealTelegramBotAdapter) send(ctx context.Context, chatID int64, text string) error {
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text})
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())

	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)

	if msg.IsCommand() {
		command := msg.Command()
		h, ok := r.commandRoutes()[command]
		if !ok {
			// slash text we do not route may still be a broadcast draft
			return r.handleText(ctx, msg)
		}
		if !r.allow(ctx, msg.From.ID, "/"+command) {
			return r.send(ctx, msg.Chat.ID, r.facade.T("rate_limited"))
		}
		metrics.IncTelegramCommand("/" + command)
		return h(ctx, msg)
	}

	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	return r.handleText(ctx, msg)
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, key string) bool {
	if r.rateLimiter == nil {
		return true
	}
	limit := r.cfg.CommandRateLimit
	if limit <= 0 {
		limit = 20
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, key), limit, time.Minute)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
	}
	return allowed
}
