package repository

import (
	"context"
)

// RegistrationStep defines the possible steps in the registration flow.
type RegistrationStep string

const (
	StateAwaitingUsername RegistrationStep = "awaiting_username"
	StateAwaitingEmail    RegistrationStep = "awaiting_email"
)

// RegistrationState holds the user's current progress.
type RegistrationState struct {
	Step RegistrationStep  `json:"step"`
	Data map[string]string `json:"data"` // collected fields, e.g. username
}

// RegistrationStateRepository is the port for managing user registration state.
// GetState returns (nil, nil) when the user is not in the dialogue.
type RegistrationStateRepository interface {
	SetState(ctx context.Context, tgID int64, state *RegistrationState) error
	GetState(ctx context.Context, tgID int64) (*RegistrationState, error)
	ClearState(ctx context.Context, tgID int64) error
}
