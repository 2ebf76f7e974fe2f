package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Length limits in characters, applied to trimmed text.
const (
	TaskNameMaxLength        = 200
	TaskDescriptionMaxLength = 4000
	CommentMaxLength         = 1000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateTaskName checks a task name and returns ErrBlank or ErrTooLong.
func ValidateTaskName(name string) error {
	return checkText(name, TaskNameMaxLength)
}

// ValidateTaskDescription checks an optional description; nil is always valid.
func ValidateTaskDescription(description *string) error {
	if description == nil {
		return nil
	}
	return checkText(*description, TaskDescriptionMaxLength)
}

// ValidateComment checks comment content.
func ValidateComment(content string) error {
	return checkText(content, CommentMaxLength)
}

func checkText(s string, max int) error {
	err := validate.Var(strings.TrimSpace(s), fmt.Sprintf("required,max=%d", max))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return ErrBlank
		case "max":
			return ErrTooLong
		}
	}
	return err
}

// Invalid wraps a field error so that errors.Is matches both ErrInvalid and the cause.
func Invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalid, field, err)
}
