package telegram

import (
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
)

// Telegram answers 400 for some recipients that can never be reached.
var unreachableHints = []string{
	"chat not found",
	"user is deactivated",
	"peer_id_invalid",
	"bot was blocked",
	"bot can't initiate conversation",
}

// classifyError turns an error from the Bot API client into *adapter.SendError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := adapter.AsSendError(err); ok {
		return err
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fromAPIError(*apiErr, err)
	}
	var apiErrVal tgbotapi.Error
	if errors.As(err, &apiErrVal) {
		return fromAPIError(apiErrVal, err)
	}

	// Network failures, timeouts and undecodable gateway pages.
	return &adapter.SendError{Kind: adapter.SendTransient, Reason: err.Error(), Err: err}
}

func fromAPIError(e tgbotapi.Error, cause error) *adapter.SendError {
	se := &adapter.SendError{Code: e.Code, Reason: e.Message, Err: cause}
	msg := strings.ToLower(e.Message)

	switch {
	case e.Code == http.StatusForbidden:
		se.Kind = adapter.SendUnreachable
	case e.Code == http.StatusTooManyRequests:
		se.Kind = adapter.SendRateLimited
		if e.RetryAfter > 0 {
			se.RetryAfter = time.Duration(e.RetryAfter) * time.Second
		}
	case e.Code >= 500 || e.Code == 0:
		se.Kind = adapter.SendTransient
	case containsAny(msg, unreachableHints):
		se.Kind = adapter.SendUnreachable
	default:
		se.Kind = adapter.SendRejected
	}
	return se
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
