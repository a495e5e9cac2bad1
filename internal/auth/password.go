package auth

import (
	"strings"

	"github.com/mmynk/storefront/internal/apperr"
)

// Validation messages shown to the user. No network call is made when one
// of these is returned.
var (
	ErrPasswordMismatch   = apperr.Validation("Passwords do not match")
	ErrMissingCredentials = apperr.Validation("Email and password are required")
	ErrMissingName        = apperr.Validation("Name is required")
)

// ValidateLogin checks that both credentials were entered.
func ValidateLogin(creds Credentials) error {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// ValidateRegistration checks a registration form before it is submitted.
func ValidateRegistration(reg Registration) error {
	if strings.TrimSpace(reg.Name) == "" {
		return ErrMissingName
	}
	if err := ValidateLogin(Credentials{Email: reg.Email, Password: reg.Password}); err != nil {
		return err
	}
	return ValidateConfirmation(reg.Password, reg.ConfirmPassword)
}

// ValidateProfileUpdate checks a profile form. An empty password leaves the
// password unchanged, but a confirmation must still match it.
func ValidateProfileUpdate(update ProfileUpdate) error {
	return ValidateConfirmation(update.Password, update.ConfirmPassword)
}

// ValidateConfirmation checks that the password was typed identically twice.
func ValidateConfirmation(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
