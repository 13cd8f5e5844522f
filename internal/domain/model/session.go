package model

import "time"

type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionComposing  SessionState = "composing"
	SessionConfirming SessionState = "confirming"
)

// BroadcastSession is the per-admin dialogue state of a broadcast being prepared.
type BroadcastSession struct {
	AdminID        int64        `json:"admin_id"`
	State          SessionState `json:"state"`
	Draft          string       `json:"draft,omitempty"`
	RecipientCount int          `json:"recipient_count"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func NewBroadcastSession(adminID int64, recipients int) *BroadcastSession {
	return &BroadcastSession{
		AdminID:        adminID,
		State:          SessionComposing,
		RecipientCount: recipients,
		UpdatedAt:      time.Now(),
	}
}

// SetDraft moves a composing session to confirming.
func (s *BroadcastSession) SetDraft(text string) {
	s.Draft = text
	s.State = SessionConfirming
	s.UpdatedAt = time.Now()
}

// Reopen drops the draft and moves the session back to composing.
func (s *BroadcastSession) Reopen() {
	s.Draft = ""
	s.State = SessionComposing
	s.UpdatedAt = time.Now()
}

func (s *BroadcastSession) ReadyToSend() bool {
	return s != nil && s.State == SessionConfirming && s.Draft != ""
}
