package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain"

	"github.com/oklog/ulid/v2"
)

// Recipient is an immutable snapshot of a broadcast target taken at broadcast start.
type Recipient struct {
	ID       int64
	Username string
}

// BroadcastRequest is created when an admin confirms a composed message.
type BroadcastRequest struct {
	InitiatorID int64
	Text        string
	CreatedAt   time.Time
}

func NewBroadcastRequest(initiatorID int64, text string) (BroadcastRequest, error) {
	req := BroadcastRequest{InitiatorID: initiatorID, Text: text, CreatedAt: time.Now()}
	return req, req.Validate()
}

func (r BroadcastRequest) Validate() error {
	if r.InitiatorID == 0 {
		return domain.ErrInvalidArgument
	}
	if strings.TrimSpace(r.Text) == "" {
		return domain.ErrEmptyMessage
	}
	return nil
}

type OutcomeStatus string

const (
	OutcomeDelivered OutcomeStatus = "delivered"
	OutcomeFailed    OutcomeStatus = "failed"
)

// BroadcastOutcome is the result of one delivery attempt. Outcomes are only
// aggregated, never stored individually.
type BroadcastOutcome struct {
	RecipientID int64
	Status      OutcomeStatus
	Reason      string
}

type DeliveryError struct {
	RecipientID int64  `json:"recipient_id"`
	Reason      string `json:"reason"`
}

// BroadcastResult aggregates the outcomes of one broadcast.
// Succeeded + Failed always equals TotalRecipients.
type BroadcastResult struct {
	TotalRecipients int             `json:"total_recipients"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	Errors          []DeliveryError `json:"errors,omitempty"`
}

// NewBroadcastResult folds outcomes in order.
func NewBroadcastResult(outcomes []BroadcastOutcome) *BroadcastResult {
	res := &BroadcastResult{}
	for _, o := range outcomes {
		res.Add(o)
	}
	return res
}

func (r *BroadcastResult) Add(o BroadcastOutcome) {
	r.TotalRecipients++
	if o.Status == OutcomeDelivered {
		r.Succeeded++
		return
	}
	r.Failed++
	r.Errors = append(r.Errors, DeliveryError{RecipientID: o.RecipientID, Reason: o.Reason})
}

// SuccessRate returns the delivered share in percent; ok is false when there
// were no recipients.
func (r *BroadcastResult) SuccessRate() (float64, bool) {
	return successRate(r.Succeeded, r.TotalRecipients)
}

// BroadcastRecord is the persisted, append-only audit entry of a broadcast.
type BroadcastRecord struct {
	ID              string    `json:"id"`
	InitiatorID     int64     `json:"initiator_id"`
	Text            string    `json:"text"`
	SentAt          time.Time `json:"sent_at"`
	TotalRecipients int       `json:"total_recipients"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
}

func NewBroadcastRecord(req BroadcastRequest, res *BroadcastResult, sentAt time.Time) *BroadcastRecord {
	return &BroadcastRecord{
		ID:              ulid.MustNew(ulid.Timestamp(sentAt), rand.Reader).String(),
		InitiatorID:     req.InitiatorID,
		Text:            req.Text,
		SentAt:          sentAt,
		TotalRecipients: res.TotalRecipients,
		Succeeded:       res.Succeeded,
		Failed:          res.Failed,
	}
}

func (r *BroadcastRecord) SuccessRate() (float64, bool) {
	return successRate(r.Succeeded, r.TotalRecipients)
}

func successRate(ok, total int) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	return float64(ok) * 100 / float64(total), true
}
