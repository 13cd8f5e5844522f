package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
	"github.com/kasboi/payecards-bot/internal/infra/worker"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ BroadcastUseCase = (*broadcastUC)(nil)

// BroadcastUseCase fans one admin message out to every registered user.
type BroadcastUseCase interface {
	// Broadcast takes a fresh recipient snapshot and executes the request.
	// Only a failure to obtain the snapshot is returned as an error.
	Broadcast(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error)
	// Execute delivers req to recipients in order. Per-recipient failures are
	// recorded in the result and never abort the run.
	Execute(ctx context.Context, req model.BroadcastRequest, recipients []model.Recipient) (*model.BroadcastResult, error)
	History(ctx context.Context, limit int) ([]*model.BroadcastRecord, error)
	Last(ctx context.Context) (*model.BroadcastRecord, error)
}

// RecipientSource supplies the current set of broadcast recipients.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]model.Recipient, error)
}

type BroadcastOptions struct {
	Banner         string
	MaxRetries     int
	RetryBackoff   time.Duration
	HistoryTimeout time.Duration
}

const maxRetryWait = 30 * time.Second

type broadcastUC struct {
	recipients RecipientSource
	bot        adapter.TelegramBotAdapter
	history    repository.BroadcastHistoryRepository
	dispatcher *worker.Dispatcher
	opts       BroadcastOptions
	log        *zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewBroadcastUseCase(
	recipients RecipientSource,
	bot adapter.TelegramBotAdapter,
	history repository.BroadcastHistoryRepository,
	dispatcher *worker.Dispatcher,
	opts BroadcastOptions,
	logger *zerolog.Logger,
) *broadcastUC {
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = 5 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	return &broadcastUC{
		recipients: recipients,
		bot:        bot,
		history:    history,
		dispatcher: dispatcher,
		opts:       opts,
		log:        logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func (u *broadcastUC) Broadcast(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error) {
	defer logging.TraceDuration(u.log, "BroadcastUC.Broadcast")()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	recipients, err := u.recipients.Recipients(ctx)
	if err != nil {
		metrics.ObserveBroadcast("failed", 0)
		logging.With(ctx, u.log).Error().Err(err).Int64("admin_id", req.InitiatorID).Msg("failed to fetch broadcast recipients")
		return nil, fmt.Errorf("fetch recipients: %w", err)
	}
	return u.Execute(ctx, req, recipients)
}

func (u *broadcastUC) Execute(ctx context.Context, req model.BroadcastRequest, recipients []model.Recipient) (*model.BroadcastResult, error) {
	defer logging.TraceDuration(u.log, "BroadcastUC.Execute")()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := logging.With(ctx, u.log)

	// Once started, a broadcast runs over the whole snapshot even if the
	// triggering update's context ends.
	runCtx := context.WithoutCancel(ctx)
	snapshot := append([]model.Recipient(nil), recipients...)
	text := u.opts.Banner + req.Text

	log.Info().
		Int64("admin_id", req.InitiatorID).
		Int("recipients", len(snapshot)).
		Str("preview", logging.Preview(req.Text, 40)).
		Msg("broadcast started")

	start := u.now()
	outcomes := make([]model.BroadcastOutcome, len(snapshot))
	u.dispatcher.Run(runCtx, len(snapshot), func(ctx context.Context, i int) {
		outcomes[i] = u.deliver(ctx, snapshot[i], text)
	})
	res := model.NewBroadcastResult(outcomes)
	elapsed := u.now().Sub(start)
	metrics.ObserveBroadcast(runResult(res), elapsed)

	ev := log.Info()
	if res.Failed > 0 {
		ev = log.Warn()
	}
	ev.Int64("admin_id", req.InitiatorID).
		Int("total", res.TotalRecipients).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Dur("duration", elapsed).
		Msg("broadcast finished")

	u.recordHistory(runCtx, req, res)
	return res, nil
}

// deliver sends text to one recipient, retrying rate-limited and transient
// failures up to MaxRetries times.
func (u *broadcastUC) deliver(ctx context.Context, r model.Recipient, text string) model.BroadcastOutcome {
	params := adapter.SendMessageParams{
		ChatID:    r.ID,
		Text:      text,
		ParseMode: adapter.ParseModeMarkdown,
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = u.bot.SendMessage(ctx, params)
		if err == nil {
			metrics.IncBroadcastDelivery(string(model.OutcomeDelivered), "")
			return model.BroadcastOutcome{RecipientID: r.ID, Status: model.OutcomeDelivered}
		}
		se, typed := adapter.AsSendError(err)
		if attempt >= u.opts.MaxRetries || !typed || !se.Retryable() {
			break
		}
		wait := u.backoff(attempt, se)
		u.log.Debug().Err(err).Int64("tg_id", r.ID).Int("attempt", attempt+2).Dur("delay", wait).Msg("broadcast send retry scheduled")
		metrics.IncBroadcastRetry()
		if u.sleep(ctx, wait) != nil {
			break
		}
		if u.dispatcher.Wait(ctx) != nil {
			break
		}
	}

	kind := "unknown"
	if se, ok := adapter.AsSendError(err); ok {
		kind = string(se.Kind)
	}
	metrics.IncBroadcastDelivery(string(model.OutcomeFailed), kind)
	u.log.Warn().Err(err).Int64("tg_id", r.ID).Str("kind", kind).Msg("failed to deliver broadcast message")
	return model.BroadcastOutcome{
		RecipientID: r.ID,
		Status:      model.OutcomeFailed,
		Reason:      adapter.FailureReason(err),
	}
}

func (u *broadcastUC) backoff(attempt int, se *adapter.SendError) time.Duration {
	if se.RetryAfter > 0 {
		return min(se.RetryAfter, maxRetryWait)
	}
	d := u.opts.RetryBackoff << attempt
	if d <= 0 || d > maxRetryWait {
		return maxRetryWait
	}
	return d
}

// recordHistory is a best-effort side record: failures are logged and
// counted, never reported through the result.
func (u *broadcastUC) recordHistory(ctx context.Context, req model.BroadcastRequest, res *model.BroadcastResult) {
	rec := model.NewBroadcastRecord(req, res, u.now())

	hctx, cancel := context.WithTimeout(ctx, u.opts.HistoryTimeout)
	defer cancel()
	if err := u.history.Append(hctx, repository.NoTX, rec); err != nil {
		metrics.IncBroadcastHistoryFailure()
		logging.With(ctx, u.log).Error().Err(err).
			Str("record_id", rec.ID).
			Int64("admin_id", rec.InitiatorID).
			Msg("failed to save broadcast history")
	}
}

func (u *broadcastUC) History(ctx context.Context, limit int) ([]*model.BroadcastRecord, error) {
	defer logging.TraceDuration(u.log, "BroadcastUC.History")()
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	return u.history.Recent(ctx, repository.NoTX, limit)
}

// Last returns the most recent broadcast or nil when none was sent yet.
func (u *broadcastUC) Last(ctx context.Context) (*model.BroadcastRecord, error) {
	recs, err := u.history.Recent(ctx, repository.NoTX, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func runResult(res *model.BroadcastResult) string {
	switch {
	case res.TotalRecipients == 0:
		return "empty"
	case res.Failed == 0:
		return "complete"
	case res.Succeeded == 0:
		return "failed"
	default:
		return "partial"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
