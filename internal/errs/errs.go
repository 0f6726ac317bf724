package errs

import (
	"errors"
	"net/http"
)

// Code is an application error code.
type Code string

const (
	InvalidArgument   Code = "invalid_argument"
	MalformedID       Code = "malformed_id"
	MissingField      Code = "missing_field"
	InvalidFolder     Code = "invalid_folder"
	InvalidTag        Code = "invalid_tag"
	DuplicateUsername Code = "duplicate_username"
	DuplicateName     Code = "duplicate_name"
	ValidationFailed  Code = "validation_failed"
	Unauthenticated   Code = "unauthenticated"
	NotFound          Code = "not_found"
	Unavailable       Code = "unavailable"
	Internal          Code = "internal"
)

// Error is a coded application error. Location names the request field
// the error refers to, when there is one.
type Error struct {
	Code     Code
	Message  string
	Location string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Field creates a coded error attached to a request field.
func Field(code Code, location, message string) error {
	return &Error{
		Code:     code,
		Message:  message,
		Location: location,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// MessageOf returns a user-facing error message.
// Untyped errors yield "internal error" so store errors never reach clients.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// LocationOf returns the request field a coded error points at, or "".
func LocationOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Location
	}
	return ""
}

// HTTPStatus maps error code to HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument, MalformedID, MissingField, InvalidFolder, InvalidTag,
		DuplicateUsername, DuplicateName:
		return http.StatusBadRequest
	case ValidationFailed:
		return http.StatusUnprocessableEntity
	case Unauthenticated:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
