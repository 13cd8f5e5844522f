// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type ParseMode string

const (
	ParseModeNone     ParseMode = ""
	ParseModeMarkdown ParseMode = "Markdown"
	ParseModeHTML     ParseMode = "HTML"
)

// Button is a keyboard button. Inline buttons carry callback Data or a URL.
type Button struct {
	Text string
	Data string
	URL  string
}

type ReplyMarkup struct {
	Buttons  [][]Button
	IsInline bool
}

type SendMessageParams struct {
	ChatID      int64
	Text        string
	ParseMode   ParseMode
	ReplyMarkup *ReplyMarkup
}

// TelegramBotAdapter is the outbound side of the chat transport.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error
}

// SendErrorKind classifies a failed delivery.
type SendErrorKind string

const (
	// SendUnreachable: the recipient blocked the bot, deleted the chat or was deactivated.
	SendUnreachable SendErrorKind = "unreachable"
	// SendRateLimited: the transport asked us to slow down.
	SendRateLimited SendErrorKind = "rate_limited"
	// SendTransient: network trouble or a server side error.
	SendTransient SendErrorKind = "transient"
	// SendRejected: any other client error (bad markup, message too long).
	SendRejected SendErrorKind = "rejected"
)

// SendError is the typed failure returned by TelegramBotAdapter.SendMessage.
// Reason keeps the transport's own description.
type SendError struct {
	Kind       SendErrorKind
	Code       int
	Reason     string
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether resending the same message later may succeed.
func (e *SendError) Retryable() bool {
	return e.Kind == SendRateLimited || e.Kind == SendTransient
}

// AsSendError extracts a *SendError from err, if any.
func AsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// FailureReason returns the transport's reason text for err.
func FailureReason(err error) string {
	if se, ok := AsSendError(err); ok && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}
