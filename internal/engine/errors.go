package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned when an operation is submitted after the Run loop exited.
var ErrStopped = errors.New("engine stopped")

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// Validation errors are rejected before any durable write.
	CodeInvalidDuration    ErrorCode = "INVALID_DURATION"
	CodeInvalidWinnerCount ErrorCode = "INVALID_WINNER_COUNT"
	CodeTitleTooLong       ErrorCode = "TITLE_TOO_LONG"
	CodeInvalidTitle       ErrorCode = "INVALID_TITLE"
	CodeInvalidLocation    ErrorCode = "INVALID_LOCATION"
	CodeInvalidImage       ErrorCode = "INVALID_IMAGE"
	CodeInvalidParticipant ErrorCode = "INVALID_PARTICIPANT"

	// CodeNotFound means the event is not in the live registry.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeStorage means a durable read or write failed; the registry is unchanged.
	CodeStorage ErrorCode = "STORAGE"

	// CodePresentation means the presentation adapter failed before anything
	// was committed.
	CodePresentation ErrorCode = "PRESENTATION"
)

// Error is the structured error returned by engine operations.
type Error struct {
	Code    ErrorCode
	Message string

	// EventID identifies the affected event, if any.
	EventID string

	// Err is the underlying cause for storage and presentation failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EventID != "" {
		msg += fmt.Sprintf(" (event=%s)", e.EventID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of an engine error, or "" for any other error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsValidation returns true for input that was rejected before any write.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidDuration, CodeInvalidWinnerCount, CodeTitleTooLong, CodeInvalidTitle,
		CodeInvalidLocation, CodeInvalidImage, CodeInvalidParticipant:
		return true
	}
	return false
}

// IsNotFound returns true if the event was not live.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsStorage returns true if a durable read or write failed.
func IsStorage(err error) bool {
	return CodeOf(err) == CodeStorage
}

// IsPresentation returns true if the presentation adapter failed.
func IsPresentation(err error) bool {
	return CodeOf(err) == CodePresentation
}

func validationError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: "giveaway not found", EventID: id}
}

func storageError(id, op string, err error) *Error {
	return &Error{Code: CodeStorage, Message: op, EventID: id, Err: err}
}

func presentationError(id, op string, err error) *Error {
	return &Error{Code: CodePresentation, Message: op, EventID: id, Err: err}
}
