package usecase

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kasboi/payecards-bot/internal/domain"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

type usernameInput struct {
	Username string `validate:"required,min=3,max=50,username"`
}

type emailInput struct {
	Email string `validate:"required,max=254,email"`
}

// ValidateUsername accepts 3-50 characters of letters, digits, '_' and '-'.
func ValidateUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	if err := validate.Struct(usernameInput{Username: s}); err != nil {
		return "", domain.ErrInvalidUsername
	}
	return s, nil
}

// ValidateEmail returns the normalized (lowercased) address.
func ValidateEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if err := validate.Struct(emailInput{Email: s}); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return s, nil
}
