package download

import (
	"errors"
	"fmt"
	"time"

	"estadistica/internal/portal"
)

// Kind classifies a run error into the handling taxonomy.
type Kind string

const (
	// KindConfig is a missing or malformed configuration value, fatal at
	// startup before any date is attempted.
	KindConfig Kind = "config"
	// KindSession means no authenticated portal session exists. Fatal:
	// no date can succeed, the whole run aborts.
	KindSession Kind = "session"
	// KindElementNotFound means an expected portal control vanished
	// mid-run. Escalated to fatal, same handling as KindSession.
	KindElementNotFound Kind = "element_not_found"
	// KindDownloadTimeout means the report or its export did not appear
	// within the configured timeout. Retryable up to the attempt budget.
	KindDownloadTimeout Kind = "download_timeout"
	// KindFileParse means a downloaded per-day file is unreadable. The
	// date's contribution is skipped with a warning, the run continues.
	KindFileParse Kind = "file_parse"
	// KindIO is a final-write failure. Fatal for the output, but the
	// per-day raw files remain on disk for a retry.
	KindIO Kind = "io"
)

// Error is the typed error carried through orchestration and reporting.
type Error struct {
	Kind      Kind
	Date      time.Time
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if !e.Date.IsZero() {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Date.Format("2006-01-02"), e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a fatal configuration error.
func NewConfigError(message string, cause error) *Error {
	return &Error{Kind: KindConfig, Message: message, Cause: cause}
}

// NewSessionError creates a fatal no-session error.
func NewSessionError(cause error) *Error {
	return &Error{Kind: KindSession, Message: "no authenticated portal session", Cause: cause}
}

// NewElementNotFoundError creates a fatal vanished-control error.
func NewElementNotFoundError(date time.Time, cause error) *Error {
	return &Error{Kind: KindElementNotFound, Date: date, Message: "portal control vanished mid-run", Cause: cause}
}

// NewTimeoutError creates a retryable per-date timeout error.
func NewTimeoutError(date time.Time, message string, cause error) *Error {
	return &Error{Kind: KindDownloadTimeout, Date: date, Message: message, Cause: cause, Retryable: true}
}

// NewFileParseError creates a skippable parse error for one date's file.
func NewFileParseError(date time.Time, cause error) *Error {
	return &Error{Kind: KindFileParse, Date: date, Message: "per-day file is malformed", Cause: cause}
}

// NewIOError creates a fatal output-write error.
func NewIOError(message string, cause error) *Error {
	return &Error{Kind: KindIO, Message: message, Cause: cause}
}

// IsRetryable reports whether an error may be retried within the budget.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsFatal reports whether an error must abort the whole run.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindConfig, KindSession, KindElementNotFound:
			return true
		}
	}
	return false
}

// ErrorKind returns the kind of a classified error, or "" for others.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify maps driver sentinels onto the taxonomy for one date's fetch.
func classify(date time.Time, err error) *Error {
	switch {
	case errors.Is(err, portal.ErrMarkerNotFound):
		return NewElementNotFoundError(date, err)
	case errors.Is(err, portal.ErrResultTimeout):
		return NewTimeoutError(date, "result table did not appear", err)
	case errors.Is(err, portal.ErrDownloadTimeout):
		return NewTimeoutError(date, "exported file did not arrive", err)
	case errors.Is(err, portal.ErrExportNotFound):
		// the export menu sometimes needs another generation round-trip
		return NewTimeoutError(date, "export link not available", err)
	default:
		return NewTimeoutError(date, "fetch failed", err)
	}
}
