package authcard

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	emailPattern     = regexp.MustCompile(`\S+@\S+\.\S+`)
	uppercasePattern = regexp.MustCompile(`[A-Z]`)
	digitPattern     = regexp.MustCompile(`[0-9]`)
)

const (
	MinSignInPasswordLength   = 6
	MinRegisterPasswordLength = 8
	MinNameLength             = 2
)

type fieldCheck struct {
	field string
	value any
	rules []validation.Rule
}

// firstFailure runs the checks in order and stops at the first rule that
// fails, so earlier fields take precedence.
func firstFailure(checks ...fieldCheck) *ValidationError {
	for _, check := range checks {
		if err := validation.Validate(check.value, check.rules...); err != nil {
			return &ValidationError{Field: check.field, Message: err.Error()}
		}
	}
	return nil
}

// ValidateCredentials checks sign in input. A nil result means the
// credentials may be sent to the backend.
func ValidateCredentials(c Credentials) *ValidationError {
	fillAll := "Please fill in all fields."
	return firstFailure(
		fieldCheck{"email", strings.TrimSpace(c.Email), []validation.Rule{
			validation.Required.Error(fillAll),
		}},
		fieldCheck{"password", strings.TrimSpace(c.Password), []validation.Rule{
			validation.Required.Error(fillAll),
		}},
		fieldCheck{"email", c.Email, []validation.Rule{
			validation.Match(emailPattern).Error("Please enter a valid email address."),
		}},
		fieldCheck{"password", c.Password, []validation.Rule{
			minRunes(MinSignInPasswordLength, "Password must be at least 6 characters."),
		}},
	)
}

// ValidateRegistration checks registration input with the stricter
// password policy.
func ValidateRegistration(p RegistrationProfile) *ValidationError {
	name := strings.TrimSpace(p.Name)
	return firstFailure(
		fieldCheck{"name", name, []validation.Rule{
			validation.Required.Error("Please enter your full name."),
			minRunes(MinNameLength, "Name must be at least 2 characters."),
		}},
		fieldCheck{"email", strings.TrimSpace(p.Email), []validation.Rule{
			validation.Required.Error("Please enter your email address."),
		}},
		fieldCheck{"email", p.Email, []validation.Rule{
			validation.Match(emailPattern).Error("Please enter a valid email address."),
		}},
		fieldCheck{"password", p.Password, []validation.Rule{
			validation.Required.Error("Please enter a password."),
			minRunes(MinRegisterPasswordLength, "Password must be at least 8 characters."),
			validation.Match(uppercasePattern).Error("Password must contain at least one uppercase letter."),
			validation.Match(digitPattern).Error("Password must contain at least one number."),
		}},
	)
}

func minRunes(min int, message string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if utf8.RuneCountInString(s) < min {
			return errors.New(message)
		}
		return nil
	})
}
