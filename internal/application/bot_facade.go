package application

import (
	"context"
	"errors"
	"strings"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/i18n"
	"github.com/kasboi/payecards-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// Callback payloads shared with the telegram adapter.
const (
	CallbackBroadcastConfirm = "broadcast_confirm"
	CallbackBroadcastCancel  = "broadcast_cancel"
	CallbackCryptoMenu       = "crypto_menu"
	CallbackCryptoTop        = "crypto_top"
	CallbackCoinPrefix       = "coin:"
)

const historyPreviewLen = 50

// Reply is a rendered chat answer. The telegram adapter only forwards it.
type Reply struct {
	Text      string
	ParseMode adapter.ParseMode
	Markup    *adapter.ReplyMarkup

	// DraftPreview marks the confirmation prompt that embeds a broadcast draft.
	DraftPreview bool
}

func plain(text string) Reply    { return Reply{Text: text} }
func markdown(text string) Reply { return Reply{Text: text, ParseMode: adapter.ParseModeMarkdown} }

// BotFacade composes usecases into high-level bot commands.
type BotFacade struct {
	UserUC      usecase.UserUseCase
	CryptoUC    usecase.CryptoUseCase
	StatsUC     usecase.StatsUseCase
	BroadcastUC usecase.BroadcastUseCase
	SessionUC   usecase.BroadcastSessionUseCase

	t   *i18n.Translator
	log *zerolog.Logger
}

func NewBotFacade(
	userUC usecase.UserUseCase,
	cryptoUC usecase.CryptoUseCase,
	statsUC usecase.StatsUseCase,
	broadcastUC usecase.BroadcastUseCase,
	sessionUC usecase.BroadcastSessionUseCase,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		UserUC:      userUC,
		CryptoUC:    cryptoUC,
		StatsUC:     statsUC,
		BroadcastUC: broadcastUC,
		SessionUC:   sessionUC,
		t:           translator,
		log:         logger,
	}
}

func (b *BotFacade) IsAdmin(ctx context.Context, tgID int64) (bool, error) {
	return b.UserUC.IsAdmin(ctx, tgID)
}

func (b *BotFacade) T(key string, args ...interface{}) string { return b.t.T(key, args...) }

// ---------------------------------------------------------------------------
// General
// ---------------------------------------------------------------------------

func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, firstName string) (Reply, error) {
	u, err := b.UserUC.GetByTelegramID(ctx, tgID)
	switch {
	case err == nil:
		return plain(b.t.T("start_welcome_back", u.Username)), nil
	case !errors.Is(err, domain.ErrNotFound):
		return Reply{}, err
	}
	if strings.TrimSpace(firstName) == "" {
		firstName = "there"
	}
	return plain(b.t.T("start_welcome", firstName)), nil
}

func (b *BotFacade) HandleHelp(ctx context.Context, tgID int64) Reply {
	var sb strings.Builder
	sb.WriteString(b.t.T("help_user"))
	if ok, err := b.UserUC.IsAdmin(ctx, tgID); err == nil && ok {
		sb.WriteString(b.t.T("help_admin"))
	}
	sb.WriteString(b.t.T("help_footer"))
	return markdown(sb.String())
}

// ErrorReply maps a usecase error to the message shown in chat.
func (b *BotFacade) ErrorReply(err error) Reply {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return plain(b.t.T("admin_only"))
	case errors.Is(err, domain.ErrSessionExpired):
		return plain(b.t.T("broadcast_expired"))
	case errors.Is(err, domain.ErrPriceUnavailable):
		return plain(b.t.T("crypto_unavailable"))
	default:
		return plain(b.t.T("generic_error"))
	}
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func (b *BotFacade) HandleRegister(ctx context.Context, tgID int64) (Reply, error) {
	if _, err := b.UserUC.StartRegistration(ctx, tgID); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			u, ferr := b.UserUC.GetByTelegramID(ctx, tgID)
			if ferr != nil {
				return Reply{}, ferr
			}
			return plain(b.t.T("register_already", u.Username, u.Email)), nil
		}
		return Reply{}, err
	}
	return markdown(b.t.T("register_prompt_username")), nil
}

func (b *BotFacade) HandleCancelRegistration(ctx context.Context, tgID int64) (Reply, error) {
	cancelled, err := b.UserUC.CancelRegistration(ctx, tgID)
	if err != nil {
		return Reply{}, err
	}
	if !cancelled {
		return plain(b.t.T("register_nothing_to_cancel")), nil
	}
	return plain(b.t.T("register_cancelled")), nil
}

// HandleText routes free text to a composing broadcast session first and to
// the registration dialogue second. handled is false when neither wants it.
func (b *BotFacade) HandleText(ctx context.Context, tgID int64, profile model.Profile, text string) (Reply, bool, error) {
	sess, handled, err := b.SessionUC.Compose(ctx, tgID, text)
	if handled {
		if errors.Is(err, domain.ErrEmptyMessage) {
			return markdown(b.t.T("broadcast_empty")), true, nil
		}
		if err != nil {
			return Reply{}, true, err
		}
		return b.broadcastPreview(sess), true, nil
	}
	if err != nil {
		return Reply{}, false, err
	}

	progress, handled, err := b.UserUC.HandleRegistrationInput(ctx, tgID, profile, text)
	if !handled {
		return Reply{}, false, err
	}
	switch {
	case errors.Is(err, domain.ErrInvalidUsername):
		return plain(b.t.T("register_invalid_username")), true, nil
	case errors.Is(err, domain.ErrInvalidEmail):
		return plain(b.t.T("register_invalid_email")), true, nil
	case errors.Is(err, domain.ErrEmailTaken):
		return plain(b.t.T("register_email_taken")), true, nil
	case err != nil:
		b.log.Error().Err(err).Int64("tg_id", tgID).Msg("registration failed")
		return plain(b.t.T("register_failed")), true, nil
	}

	if !progress.Done {
		return plain(b.t.T("register_prompt_email", strings.TrimSpace(text))), true, nil
	}
	u := progress.User
	return Reply{
		Text: b.t.T("register_success", u.Username, u.Username, u.Email, u.TelegramID),
		Markup: &adapter.ReplyMarkup{
			IsInline: true,
			Buttons:  [][]adapter.Button{{{Text: b.t.T("btn_crypto_prices"), Data: CallbackCryptoMenu}}},
		},
	}, true, nil
}

// ---------------------------------------------------------------------------
// Crypto
// ---------------------------------------------------------------------------

func (b *BotFacade) HandleCryptoMenu() Reply {
	coins := b.CryptoUC.Coins()
	lines := make([]string, 0, len(coins))
	for _, c := range coins {
		lines = append(lines, b.t.T("crypto_menu_item", c.Name, c.Symbol))
	}

	var rows [][]adapter.Button
	for i := 0; i < len(coins); i += 2 {
		row := []adapter.Button{{Text: coinLabel(coins[i]), Data: CallbackCoinPrefix + coins[i].ID}}
		if i+1 < len(coins) {
			row = append(row, adapter.Button{Text: coinLabel(coins[i+1]), Data: CallbackCoinPrefix + coins[i+1].ID})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []adapter.Button{{Text: b.t.T("btn_top"), Data: CallbackCryptoTop}})

	return Reply{
		Text:      b.t.T("crypto_menu", strings.Join(lines, "\n")),
		ParseMode: adapter.ParseModeMarkdown,
		Markup:    &adapter.ReplyMarkup{IsInline: true, Buttons: rows},
	}
}

func coinLabel(c model.Coin) string { return c.Name + " (" + c.Symbol + ")" }

// HandleCryptoPrice quotes one coin; query may be a symbol, a name or an id.
func (b *BotFacade) HandleCryptoPrice(ctx context.Context, query string) (Reply, error) {
	q, err := b.CryptoUC.Price(ctx, query)
	switch {
	case errors.Is(err, domain.ErrUnsupportedCoin):
		return plain(b.t.T("crypto_not_found", strings.TrimSpace(query))), nil
	case errors.Is(err, domain.ErrPriceUnavailable):
		return plain(b.t.T("crypto_unavailable")), nil
	case err != nil:
		return Reply{}, err
	}

	text := b.t.T("crypto_price",
		q.Coin.Name, q.Coin.Symbol,
		FormatPrice(q.PriceUSD),
		FormatChange(q.Change24h),
		FormatPrice(q.MarketCap),
		FormatPrice(q.Volume24h),
		formatTime(q.FetchedAt),
	)
	return Reply{
		Text:      text,
		ParseMode: adapter.ParseModeMarkdown,
		Markup: &adapter.ReplyMarkup{IsInline: true, Buttons: [][]adapter.Button{{
			{Text: b.t.T("btn_refresh"), Data: CallbackCoinPrefix + q.Coin.ID},
			{Text: b.t.T("btn_menu"), Data: CallbackCryptoMenu},
		}}},
	}, nil
}

func (b *BotFacade) HandleCryptoTop(ctx context.Context) (Reply, error) {
	quotes, err := b.CryptoUC.Overview(ctx)
	if errors.Is(err, domain.ErrPriceUnavailable) {
		return plain(b.t.T("crypto_unavailable")), nil
	}
	if err != nil {
		return Reply{}, err
	}

	var sb strings.Builder
	sb.WriteString(b.t.T("crypto_top_header"))
	for _, q := range quotes {
		sb.WriteString(b.t.T("crypto_top_item", q.Coin.Name, q.Coin.Symbol, FormatPrice(q.PriceUSD), FormatChange(q.Change24h)))
	}
	sb.WriteString(b.t.T("crypto_footer"))
	return Reply{
		Text:      sb.String(),
		ParseMode: adapter.ParseModeMarkdown,
		Markup: &adapter.ReplyMarkup{IsInline: true, Buttons: [][]adapter.Button{{
			{Text: b.t.T("btn_refresh"), Data: CallbackCryptoTop},
			{Text: b.t.T("btn_menu"), Data: CallbackCryptoMenu},
		}}},
	}, nil
}

// ---------------------------------------------------------------------------
// Broadcast (admin)
// ---------------------------------------------------------------------------

func (b *BotFacade) HandleBroadcastBegin(ctx context.Context, adminID int64) (Reply, error) {
	count, err := b.SessionUC.Begin(ctx, adminID)
	if err != nil {
		return Reply{}, err
	}
	return markdown(b.t.T("broadcast_begin", count)), nil
}

func (b *BotFacade) broadcastPreview(sess *model.BroadcastSession) Reply {
	return Reply{
		Text:      b.t.T("broadcast_preview", sess.RecipientCount, sess.Draft),
		ParseMode: adapter.ParseModeMarkdown,
		Markup: &adapter.ReplyMarkup{IsInline: true, Buttons: [][]adapter.Button{{
			{Text: b.t.T("btn_send_now"), Data: CallbackBroadcastConfirm},
			{Text: b.t.T("btn_cancel"), Data: CallbackBroadcastCancel},
		}}},
		DraftPreview: true,
	}
}

// HandleBroadcastDraftRejected runs when Telegram refused to render a draft
// preview. The session goes back to composing and the admin is asked for a
// corrected text. handled is false when there is no confirming session.
func (b *BotFacade) HandleBroadcastDraftRejected(ctx context.Context, adminID int64) (Reply, bool, error) {
	reopened, err := b.SessionUC.Reopen(ctx, adminID)
	if err != nil || !reopened {
		return Reply{}, false, err
	}
	return plain(b.t.T("broadcast_invalid_format")), true, nil
}

// HandleBroadcastConfirm runs the broadcast and renders its summary.
func (b *BotFacade) HandleBroadcastConfirm(ctx context.Context, adminID int64) (Reply, error) {
	res, err := b.SessionUC.Confirm(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrUnauthorized) {
			return Reply{}, err
		}
		b.log.Error().Err(err).Int64("admin_id", adminID).Msg("broadcast failed")
		return plain(b.t.T("broadcast_failed")), nil
	}
	return markdown(b.BroadcastSummary(res)), nil
}

// BroadcastSummary renders the delivery statistics of a finished broadcast.
func (b *BotFacade) BroadcastSummary(res *model.BroadcastResult) string {
	rate, ok := res.SuccessRate()
	var sb strings.Builder
	sb.WriteString(b.t.T("broadcast_complete",
		res.TotalRecipients, res.Succeeded, FormatRate(rate, ok, b.t.T("not_available")), res.Failed))
	if res.Failed > 0 {
		sb.WriteString(b.t.T("broadcast_failures_hint"))
	}
	sb.WriteString(b.t.T("broadcast_history_hint"))
	return sb.String()
}

func (b *BotFacade) HandleBroadcastCancel(ctx context.Context, adminID int64) (Reply, error) {
	cancelled, err := b.SessionUC.Cancel(ctx, adminID)
	if err != nil {
		return Reply{}, err
	}
	if !cancelled {
		return plain(b.t.T("broadcast_nothing_to_cancel")), nil
	}
	return plain(b.t.T("broadcast_cancelled")), nil
}

func (b *BotFacade) HandleBroadcastHistory(ctx context.Context, limit int) (Reply, error) {
	records, err := b.BroadcastUC.History(ctx, limit)
	if err != nil {
		return Reply{}, err
	}
	if len(records) == 0 {
		return plain(b.t.T("broadcast_history_empty")), nil
	}

	var sb strings.Builder
	sb.WriteString(b.t.T("broadcast_history_header"))
	for i, r := range records {
		rate, ok := r.SuccessRate()
		sb.WriteString(b.t.T("broadcast_history_item",
			i+1,
			formatTime(r.SentAt),
			r.TotalRecipients,
			r.Succeeded,
			FormatRate(rate, ok, b.t.T("not_available")),
			r.Failed,
			escapeMarkdown(preview(r.Text, historyPreviewLen)),
		))
	}
	return markdown(sb.String()), nil
}

// ---------------------------------------------------------------------------
// Stats (admin)
// ---------------------------------------------------------------------------

func (b *BotFacade) HandleStats(ctx context.Context) (Reply, error) {
	sum, err := b.StatsUC.Summary(ctx)
	if err != nil {
		return Reply{}, err
	}
	var sb strings.Builder
	sb.WriteString(b.t.T("stats_header", sum.TotalUsers))
	if last := sum.LastBroadcast; last != nil {
		sb.WriteString(b.t.T("stats_last_broadcast", formatTime(last.SentAt), last.TotalRecipients, last.Succeeded))
	}
	return markdown(sb.String()), nil
}
