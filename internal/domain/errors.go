package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy. Transport code maps these with errors.Is; the specific errors
// below wrap one of them.
var (
	ErrValidation   = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

var (
	// ErrQuestionNotFound indicates a submitted question ID is not in the bank.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrUserNotFound is returned by lookups and admin updates for unknown participants.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrResultNotFound is returned when no participant result exists.
	ErrResultNotFound = fmt.Errorf("result %w", ErrNotFound)

	// ErrUserExists is returned when a registration collides on roll number, mobile or email.
	ErrUserExists = fmt.Errorf("%w: user already exists with this roll number, mobile number, or email", ErrConflict)
	// ErrAlreadyCompleted is returned by the one-shot submission when a result already exists.
	ErrAlreadyCompleted = fmt.Errorf("%w: quiz already completed by this user", ErrConflict)
	// ErrInvalidTransition is returned when an admin action is not valid from the current state.
	ErrInvalidTransition = fmt.Errorf("%w: action not allowed in current quiz state", ErrConflict)
	// ErrQuizNotActive is returned when an answer arrives while no question is live.
	ErrQuizNotActive = fmt.Errorf("%w: no active question", ErrConflict)
	// ErrQuestionNotCurrent is returned when an answer targets a question that is not live for the user.
	ErrQuestionNotCurrent = fmt.Errorf("%w: question is not the current question", ErrConflict)
	// ErrAnswerWindowClosed is returned when an answer arrives after the answer window.
	ErrAnswerWindowClosed = fmt.Errorf("%w: answer window closed", ErrConflict)

	// ErrMissingToken is returned when an admin route is called without a bearer token.
	ErrMissingToken = fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	// ErrBadCredentials is returned by admin login.
	ErrBadCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
)

// ValidationError carries field level messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
