package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const maxIDLength = 128

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterValidation("docid", func(fl validator.FieldLevel) bool {
			return ValidateID(fl.Field().String()) == nil
		})
	})
	return validate
}

// ValidateStruct checks the validate tags of v and returns the first
// violation in a readable form.
func ValidateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", fe.Field())
		case "max":
			return fmt.Errorf("%s exceeds maximum length", fe.Field())
		case "oneof":
			return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%s is invalid", fe.Field())
		}
	}
	return err
}

// ValidateUserID validates a user id used as a storage key.
func ValidateUserID(id string) error {
	if err := ValidateID(id); err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}
	return nil
}

// ValidateID validates a conversation, folder or file id.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > maxIDLength {
		return errors.New("id exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("id must be valid UTF-8")
	}
	for _, r := range id {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return errors.New("id contains invalid characters")
		}
	}
	if id == "." || id == ".." {
		return errors.New("id is reserved")
	}
	return nil
}

// ValidateTitle validates a conversation title or folder name.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title cannot be empty")
	}
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
