package chain

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected submission.
type Kind string

const (
	KindEmptyThought       Kind = "EmptyThoughtError"
	KindConfidenceRange    Kind = "ConfidenceRangeError"
	KindUnknownReference   Kind = "UnknownReferenceError"
	KindMissingBranchID    Kind = "MissingBranchIdError"
	KindInvalidNumber      Kind = "InvalidNumberError"
	KindDuplicateNumber    Kind = "DuplicateNumberError"
	KindInvalidThoughtType Kind = "InvalidThoughtTypeError"
)

// Sentinels for errors.Is. Every *ValidationError unwraps to the sentinel
// of its Kind.
var (
	ErrEmptyThought       = errors.New("thought text is empty")
	ErrConfidenceRange    = errors.New("confidence outside [0.0, 1.0]")
	ErrUnknownReference   = errors.New("reference to a thought that was never submitted")
	ErrMissingBranchID    = errors.New("branch fork requested without a branch_id")
	ErrInvalidNumber      = errors.New("thought number must be a positive integer")
	ErrDuplicateNumber    = errors.New("thought number already used")
	ErrInvalidThoughtType = errors.New("thought type outside the closed set")
)

var sentinels = map[Kind]error{
	KindEmptyThought:       ErrEmptyThought,
	KindConfidenceRange:    ErrConfidenceRange,
	KindUnknownReference:   ErrUnknownReference,
	KindMissingBranchID:    ErrMissingBranchID,
	KindInvalidNumber:      ErrInvalidNumber,
	KindDuplicateNumber:    ErrDuplicateNumber,
	KindInvalidThoughtType: ErrInvalidThoughtType,
}

// ValidationError is returned by Submit when the input is rejected. The
// session is left untouched.
type ValidationError struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the sentinel of the error's kind.
func (e *ValidationError) Unwrap() error {
	return sentinels[e.Kind]
}

func invalid(kind Kind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
