package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrSendHandleNil = errors.New("send handle is nil")
)

// InvalidInputError is returned when a message cannot be sent: it is blank,
// or another message is still in flight. Nothing was sent and the session
// state is unchanged.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrInvalidInput.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func errEmptyMessage() error {
	return &InvalidInputError{Reason: "message is empty"}
}

func errSendPending() error {
	return &InvalidInputError{Reason: "a message is already being sent"}
}
