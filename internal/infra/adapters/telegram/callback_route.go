package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kasboi/payecards-bot/internal/application"
	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
	red "github.com/kasboi/payecards-bot/internal/infra/redis"
)

// callback is an inline button press. ack answers the query once; later calls
// are ignored.
type callback struct {
	chatID    int64
	messageID int
	fromID    int64
	data      string
	ack       func(text string, alert bool)
}

type cbHandler func(ctx context.Context, cb callback) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CallbackBroadcastConfirm: r.broadcastConfirmCBRoute,
		application.CallbackBroadcastCancel:  r.broadcastCancelCBRoute,
		application.CallbackCryptoMenu:       r.cryptoMenuCBRoute,
		application.CallbackCryptoTop:        r.cryptoTopCBRoute,
	}
}

func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: application.CallbackCoinPrefix, Fn: r.coinPrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	ctx = logging.WithTgID(ctx, query.From.ID)

	var once sync.Once
	cb := callback{
		chatID: query.From.ID,
		fromID: query.From.ID,
		data:   strings.TrimSpace(query.Data),
		ack: func(text string, alert bool) {
			once.Do(func() {
				answer := tgbotapi.NewCallback(query.ID, text)
				answer.ShowAlert = alert
				_, _ = r.api.Request(answer)
			})
		},
	}
	// Stop telegram spinner when we return
	defer cb.ack("", false)

	if query.Message != nil && query.Message.Chat != nil {
		cb.chatID = query.Message.Chat.ID
		cb.messageID = query.Message.MessageID
	}

	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(cb.fromID, "cb:"+cb.data), 30, time.Minute)
		if err == nil && !allowed {
			metrics.IncRateLimitTriggered()
			cb.ack(r.facade.T("rate_limited"), false)
			return nil
		}
	}

	if fn, ok := r.cbRoutes()[cb.data]; ok {
		return fn(ctx, cb)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(cb.data, pr.Prefix) {
			return pr.Fn(ctx, cb)
		}
	}
	return errors.New("unknown callback data")
}

// editText replaces the text of the message carrying the pressed button and
// drops its keyboard. Without a message to edit the text is sent instead.
func (r *RealTelegramBotAdapter) editText(ctx context.Context, cb callback, text string) error {
	if cb.messageID == 0 {
		return r.send(ctx, cb.chatID, text)
	}
	_, err := r.api.Send(tgbotapi.NewEditMessageText(cb.chatID, cb.messageID, text))
	return classifyError(err)
}

// broadcastConfirmCBRoute runs the pending broadcast. The composing message
// loses its buttons first so a second press has nothing to hit.
func (r *RealTelegramBotAdapter) broadcastConfirmCBRoute(ctx context.Context, cb callback) error {
	log := logging.With(ctx, r.log)
	cb.ack(r.facade.T("broadcast_sending_toast"), false)
	if err := r.editText(ctx, cb, r.facade.T("broadcast_sending")); err != nil {
		log.Warn().Err(err).Msg("failed to edit broadcast preview")
	}

	rep, err := r.facade.HandleBroadcastConfirm(ctx, cb.fromID)
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		if err := r.editText(ctx, cb, r.facade.T("broadcast_expired")); err != nil {
			log.Warn().Err(err).Msg("failed to edit expired broadcast")
		}
		return nil
	case err != nil:
		return r.reply(ctx, cb.chatID, r.facade.ErrorReply(err))
	}
	// the run ignores shutdown, so its report does too
	return r.reply(context.WithoutCancel(ctx), cb.chatID, rep)
}

func (r *RealTelegramBotAdapter) broadcastCancelCBRoute(ctx context.Context, cb callback) error {
	rep, err := r.facade.HandleBroadcastCancel(ctx, cb.fromID)
	if err != nil {
		return r.reply(ctx, cb.chatID, r.facade.ErrorReply(err))
	}
	cb.ack(rep.Text, false)
	return r.editText(ctx, cb, rep.Text)
}

func (r *RealTelegramBotAdapter) cryptoMenuCBRoute(ctx context.Context, cb callback) error {
	return r.reply(ctx, cb.chatID, r.facade.HandleCryptoMenu())
}

func (r *RealTelegramBotAdapter) cryptoTopCBRoute(ctx context.Context, cb callback) error {
	rep, err := r.facade.HandleCryptoTop(ctx)
	return r.answer(ctx, cb.chatID, rep, err)
}

func (r *RealTelegramBotAdapter) coinPrefixCBRoute(ctx context.Context, cb callback) error {
	id := strings.TrimPrefix(cb.data, application.CallbackCoinPrefix)
	rep, err := r.facade.HandleCryptoPrice(ctx, id)
	return r.answer(ctx, cb.chatID, rep, err)
}
