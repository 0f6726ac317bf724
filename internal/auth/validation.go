package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kuitang/noteful/internal/errs"
)

// registration holds the length rules for a new account. Lengths count characters;
// maxbytes additionally caps the password at bcrypt's input limit.
type registration struct {
	Username string `json:"username" validate:"min=1"`
	Password string `json:"password" validate:"min=8,max=72,maxbytes=72"`
}

var (
	requiredFields = []string{"username", "password"}
	stringFields   = []string{"username", "password", "fullname"}
	// Fields that must not start or end with whitespace.
	trimmedFields = []string{"username", "password"}
)

type registrationValidator struct {
	validate *validator.Validate
}

func newRegistrationValidator() *registrationValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = v.RegisterValidation("maxbytes", validateMaxBytes)
	return &registrationValidator{validate: v}
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// check validates a decoded JSON body in order: required fields, string
// types, surrounding whitespace, then lengths. It reports the first failure.
func (rv *registrationValidator) check(body map[string]any) (registration, string, error) {
	for _, field := range requiredFields {
		if _, ok := body[field]; !ok {
			return registration{}, "", invalidField(field, fmt.Sprintf("Missing %s in request body", field))
		}
	}
	for _, field := range stringFields {
		if v, ok := body[field]; ok {
			if _, isString := v.(string); !isString {
				return registration{}, "", invalidField(field, field+" has to be a string")
			}
		}
	}
	for _, field := range trimmedFields {
		s := body[field].(string)
		if strings.TrimSpace(s) != s {
			return registration{}, "", invalidField(field, field+" has spaces.")
		}
	}

	reg := registration{
		Username: body["username"].(string),
		Password: body["password"].(string),
	}
	if err := rv.validate.Struct(reg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return registration{}, "", fmt.Errorf("validate registration: %w", err)
		}
		return registration{}, "", lengthError(fieldErrs[0])
	}

	fullName, _ := body["fullname"].(string)
	return reg, strings.TrimSpace(fullName), nil
}

func lengthError(fe validator.FieldError) error {
	field := fe.Field()
	switch {
	case field == "username" && fe.Tag() == "min":
		return invalidField(field, "username has to be at least one character.")
	case fe.Tag() == "min":
		return invalidField(field, fmt.Sprintf("%s has to be at least %s characters long.", field, fe.Param()))
	default:
		return invalidField(field, fmt.Sprintf("%s has to be at most %s characters", field, fe.Param()))
	}
}

func invalidField(location, message string) error {
	return errs.Field(errs.ValidationFailed, location, message)
}
