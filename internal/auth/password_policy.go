package auth

import (
	"fmt"
	"unicode"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 128
)

// ValidatePasswordPolicy checks length and character-class requirements
// before any storage is touched. Violations wrap ErrPasswordPolicy so the
// specific message stays safe to return to the caller.
func ValidatePasswordPolicy(password string) error {
	if len(password) < passwordMinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordPolicy, passwordMinLength)
	}
	if len(password) > passwordMaxLength {
		return fmt.Errorf("%w: cannot exceed %d characters", ErrPasswordPolicy, passwordMaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("%w: must contain at least one uppercase letter", ErrPasswordPolicy)
	case !hasLower:
		return fmt.Errorf("%w: must contain at least one lowercase letter", ErrPasswordPolicy)
	case !hasDigit:
		return fmt.Errorf("%w: must contain at least one number", ErrPasswordPolicy)
	case !hasSymbol:
		return fmt.Errorf("%w: must contain at least one symbol", ErrPasswordPolicy)
	}
	return nil
}
