package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"pgregory.net/rapid"
)

var allCodes = []Code{
	InvalidArgument,
	MalformedID,
	MissingField,
	InvalidFolder,
	InvalidTag,
	DuplicateUsername,
	DuplicateName,
	ValidationFailed,
	Unauthenticated,
	NotFound,
	Unavailable,
	Internal,
}

func testFieldErrorsCarryCodeMessageAndLocation(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	location := rapid.StringMatching(`[a-zA-Z.]{1,20}`).Draw(t, "location")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := fmt.Errorf("outer: %w", Field(code, location, message))
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf mismatch: got=%q want=%q", got, message)
	}
	if got := LocationOf(err); got != location {
		t.Fatalf("LocationOf mismatch: got=%q want=%q", got, location)
	}
}

func TestFieldErrorsCarryCodeMessageAndLocation(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFieldErrorsCarryCodeMessageAndLocation)
}

func FuzzFieldErrorsCarryCodeMessageAndLocation(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testFieldErrorsCarryCodeMessageAndLocation))
}

func testCodeOfAndMessageOf_WrappedTypedError(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(wrapped); got != message {
		t.Fatalf("MessageOf(wrapped) mismatch: got=%q want=%q", got, message)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("wrapped error lost its cause")
	}
	if got := LocationOf(wrapped); got != "" {
		t.Fatalf("LocationOf(Wrap) should be empty, got %q", got)
	}
}

func TestCodeOfAndMessageOf_WrappedTypedError(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOfAndMessageOf_WrappedTypedError)
}

func testUntypedAndNilFallbacks(t *rapid.T) {
	raw := rapid.StringMatching(`[a-zA-Z0-9 _:\-./]{1,80}`).Draw(t, "raw")
	untyped := errors.New(raw)

	if got := CodeOf(untyped); got != Internal {
		t.Fatalf("CodeOf(untyped) mismatch: got=%q want=%q", got, Internal)
	}
	if got := MessageOf(untyped); got != "internal error" {
		t.Fatalf("MessageOf(untyped) mismatch: got=%q want=%q", got, "internal error")
	}
	if got := LocationOf(untyped); got != "" {
		t.Fatalf("LocationOf(untyped) mismatch: got=%q", got)
	}
	if got := CodeOf(nil); got != Internal {
		t.Fatalf("CodeOf(nil) mismatch: got=%q want=%q", got, Internal)
	}
	if got := MessageOf(nil); got != string(Internal) {
		t.Fatalf("MessageOf(nil) mismatch: got=%q want=%q", got, Internal)
	}
}

func TestUntypedAndNilFallbacks(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testUntypedAndNilFallbacks)
}

func TestHTTPStatus_Mapping(t *testing.T) {
	t.Parallel()
	cases := map[Code]int{
		InvalidArgument:     http.StatusBadRequest,
		MalformedID:         http.StatusBadRequest,
		MissingField:        http.StatusBadRequest,
		InvalidFolder:       http.StatusBadRequest,
		InvalidTag:          http.StatusBadRequest,
		DuplicateUsername:   http.StatusBadRequest,
		DuplicateName:       http.StatusBadRequest,
		ValidationFailed:    http.StatusUnprocessableEntity,
		Unauthenticated:     http.StatusUnauthorized,
		NotFound:            http.StatusNotFound,
		Unavailable:         http.StatusServiceUnavailable,
		Internal:            http.StatusInternalServerError,
		Code("unknown_code"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus mismatch: code=%q got=%d want=%d", code, got, want)
		}
	}
}
