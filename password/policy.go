package password

import (
	"errors"
	"unicode"
)

const minPolicyBytes = 8

// ValidatePolicy checks a candidate password against the account policy:
// at least 8 bytes with at least one upper-case letter, one digit, and one
// character that is neither letter nor digit.
func ValidatePolicy(password string) error {
	if len(password) < minPolicyBytes {
		return errors.New("password must be at least 8 characters")
	}

	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	if !upper {
		return errors.New("password must contain an upper-case letter")
	}
	if !digit {
		return errors.New("password must contain a digit")
	}
	if !special {
		return errors.New("password must contain a special character")
	}
	return nil
}
