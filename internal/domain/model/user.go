package model

import (
	"strings"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain"

	"github.com/google/uuid"
)

// User is a Telegram user that completed registration. Only registered users
// are stored, so every stored user is a broadcast recipient.
type User struct {
	ID         string
	TelegramID int64
	Username   string
	Email      string
	FirstName  string
	LastName   string
	IsAdmin    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile is the Telegram-side identity of the user.
type Profile struct {
	FirstName string
	LastName  string
}

// NewUser builds a registered user. The e-mail is stored lowercased.
func NewUser(id string, tgID int64, username, email string, p Profile) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if tgID <= 0 || username == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:         id,
		TelegramID: tgID,
		Username:   username,
		Email:      email,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
func (u *User) Touch()       { u.UpdatedAt = time.Now() }

// AsRecipient snapshots the user for a broadcast.
func (u *User) AsRecipient() Recipient {
	return Recipient{ID: u.TelegramID, Username: u.Username}
}
