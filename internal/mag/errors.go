package mag

import (
	"errors"
	"fmt"
)

// Format and data errors. Parsers and analyzers wrap these so callers can
// match categories with errors.Is regardless of the file format involved.
var (
	// ErrFormatCorruption indicates bytes or tokens that do not parse as the
	// declared type, or a binary verification sentinel mismatch.
	ErrFormatCorruption = errors.New("maglogic: format corruption")

	// ErrFormatTruncated indicates fewer records than the header promises.
	ErrFormatTruncated = errors.New("maglogic: format truncated")

	// ErrFormatInconsistent indicates mutually contradictory header fields.
	ErrFormatInconsistent = errors.New("maglogic: format inconsistent")

	// ErrInvalidFieldValue indicates NaN, Inf, or a zero-norm moment where
	// one is not allowed in decoded field data.
	ErrInvalidFieldValue = errors.New("maglogic: invalid field value")

	// ErrUnsupportedVariant indicates an unrecognized format version or dialect.
	ErrUnsupportedVariant = errors.New("maglogic: unsupported format variant")
)

// ParseError wraps a format error with the location that triggered it.
// Row and Column are 1-based where set; Offset is a byte offset into the
// input where known. Zero-valued location fields are omitted from Error().
type ParseError struct {
	Path    string
	Offset  int64
	Row     int
	Column  string
	Field   string
	Detail  string
	Wrapped error
}

func (e *ParseError) Error() string {
	msg := e.Wrapped.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(": row %d", e.Row)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(": column %q", e.Column)
	}
	if e.Offset > 0 {
		msg += fmt.Sprintf(": byte offset %d", e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Wrapped
}
