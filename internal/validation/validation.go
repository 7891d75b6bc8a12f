// Package validation provides input validation utilities
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"inkwell/internal/models"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest password accepted on register and change.
const MinPasswordLength = 6

const maxUsernameLength = 80

var (
	validate        = newValidator()
	usernamePattern = regexp.MustCompile(`^[^\s/?#%\\]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so error messages match the API.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

// Struct validates `validate` tags on s. Failed `required` rules become a
// MissingField error naming every missing field; other failures become a
// validation error.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError(err)
	}

	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return models.NewMissingFieldError(missing...)
	}
	fe := verrs[0]
	return models.NewValidationError(fe.Field() + " failed " + fe.Tag() + " validation")
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return models.NewWeakPasswordError(MinPasswordLength)
	}
	return nil
}

// ValidateUsername checks that a new username fits the column and can be
// used as a URL path segment and Redis channel suffix.
func ValidateUsername(username string) error {
	if username == "" {
		return models.NewMissingFieldError("username")
	}
	if len(username) > maxUsernameLength {
		return models.NewValidationError("username must not exceed 80 characters")
	}
	if !usernamePattern.MatchString(username) {
		return models.NewValidationError("username cannot contain whitespace or any of / ? # % \\")
	}
	return nil
}
