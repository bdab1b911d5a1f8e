// Package apperrors defines the closed set of failures the archive pipelines
// can surface to a caller.
package apperrors

import (
	"errors"
	"net/http"
	"strings"
)

// Kind identifies a class of failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindInvalidArchive
	KindStructure
	KindTooLarge
	KindNotFound
	KindUnauthorized
	KindExportFailure
	KindImportFailure
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindInvalidArchive:
		return "invalid archive"
	case KindStructure:
		return "invalid structure"
	case KindTooLarge:
		return "too large"
	case KindNotFound:
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindExportFailure:
		return "export failure"
	case KindImportFailure:
		return "import failure"
	case KindRateLimited:
		return "rate limited"
	default:
		return "unknown"
	}
}

// Code returns the stable code sent in error bodies.
func (k Kind) Code() string {
	switch k {
	case KindInvalidArchive:
		return "ZIPERR001"
	case KindStructure:
		return "ZIPERR002"
	case KindInvalidInput:
		return "ZIPERR003"
	case KindTooLarge:
		return "ZIPERR004"
	case KindNotFound:
		return "ZIPERR005"
	case KindUnauthorized:
		return "ZIPERR006"
	case KindExportFailure:
		return "ZIPERR007"
	case KindImportFailure:
		return "ZIPERR008"
	case KindRateLimited:
		return "ZIPERR009"
	default:
		return "ZIPERR000"
	}
}

// HTTPStatus maps the kind to a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindInvalidArchive, KindStructure:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindExportFailure, KindImportFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error carries the kind of a failure along with what was being done and on
// which item or path.
type Error struct {
	Kind  Kind
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// New builds an error of the given kind.
func New(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Cause: cause}
}

// Wrap keeps the kind of an already classified error and only adds context
// to unclassified ones.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return New(kind, op, path, err)
}

// KindOf extracts the kind of err, KindUnknown when err is not classified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidArchive = &Error{Kind: KindInvalidArchive}
	ErrStructure      = &Error{Kind: KindStructure}
	ErrTooLarge       = &Error{Kind: KindTooLarge}
	ErrNotFound       = &Error{Kind: KindNotFound}
)

// InvalidArchive is returned when an upload does not declare a zip media type.
func InvalidArchive(mimetype string) *Error {
	return New(KindInvalidArchive, "file is not a zip archive", mimetype, nil)
}

// InvalidStructure is returned when the extracted archive does not have a
// single root entry.
func InvalidStructure(dir string, entries int) *Error {
	return New(KindStructure, "zip structure is invalid", dir, errors.New(countMessage(entries)))
}

func countMessage(entries int) string {
	if entries == 0 {
		return "archive is empty"
	}
	return "archive must contain exactly one top-level entry"
}
