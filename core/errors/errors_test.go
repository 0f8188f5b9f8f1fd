package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "reader", ID: "rst"},
			wantMsg:  "reader not found: rst",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "job"},
			wantMsg:  "job not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("disk error")
		err := &NotFoundError{Resource: "blob", ID: "abc", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &ValidationError{Field: "parse.max_depth", Message: "must be positive"},
			wantMsg: "validation failed for parse.max_depth: must be positive",
		},
		{
			name:    "without field",
			err:     &ValidationError{Message: "invalid format"},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("errors.Is(%v, ErrInvalidInput) = false", tt.err)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParseError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "invalid",
			err:      NewParse("fb2", "", "XML syntax error"),
			wantMsg:  "failed to parse fb2: XML syntax error",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "invalid with path",
			err:      NewParse("rst", "doc.rst", "input is not valid UTF-8"),
			wantMsg:  "failed to parse rst at doc.rst: input is not valid UTF-8",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "unsupported format",
			err:      NewUnsupportedFormat("docx"),
			wantMsg:  "failed to parse docx: no reader registered",
			wantBase: ErrUnsupported,
		},
		{
			name:     "io",
			err:      NewParseIO("org", "a.org", io.ErrUnexpectedEOF),
			wantMsg:  "failed to parse org at a.org: unexpected EOF",
			wantBase: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, tt.wantBase) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantBase)
			}
		})
	}
}

func TestParseKindString(t *testing.T) {
	tests := map[ParseKind]string{
		ParseInvalid:           "invalid",
		ParseUnsupportedFormat: "unsupported format",
		ParseIO:                "io",
		ParseKind(42):          "ParseKind(42)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestIOError(t *testing.T) {
	base := fmt.Errorf("permission denied")
	err := NewIO("read", "/tmp/x", base)
	if got, want := err.Error(), "failed to read /tmp/x: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Error("IOError does not unwrap to its cause")
	}
	if got, want := (&IOError{Operation: "write", Err: base}).Error(), "failed to write: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("directive", "no handler")
	if got, want := err.Error(), "unsupported directive: no handler"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrUnsupported) {
		t.Error("UnsupportedError does not unwrap to ErrUnsupported")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) != nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) != nil")
	}
	err := Wrapf(NewNotFound("reader", "x"), "lookup %s", "x")
	if got, want := err.Error(), "lookup x: reader not found: x"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	var nf *NotFoundError
	if !As(err, &nf) || nf.ID != "x" {
		t.Error("As() failed to find NotFoundError")
	}
}
