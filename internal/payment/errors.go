package payment

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindPrecondition  ErrorKind = "precondition"
	KindBackend       ErrorKind = "backend"
	KindScript        ErrorKind = "script"
)

const (
	MsgMissingCourse     = "Course information is missing. Please reload the page."
	MsgMissingStudent    = "Please log in as a student to enroll."
	MsgMissingKey        = "Payments are not configured. Please contact support."
	MsgScriptFailed      = "Could not load the payment window. Please try again."
	MsgStartFailed       = "Unable to start payment. Please try again."
	MsgVerifyFailed      = "Payment verification failed."
	MsgCheckoutExpired   = "Checkout session expired."
	MsgCheckoutInterrupt = "The payment window closed unexpectedly. Please try again."
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrNotReady           = errors.New("payment widget is not ready")
	ErrAlreadyCompleted   = errors.New("payment already completed")
	ErrNoCheckout         = errors.New("no checkout open")
	ErrStaleCheckout      = errors.New("checkout does not match the open order")
	ErrDismissed          = errors.New("checkout dismissed")
)

// Error is a user-facing payment failure. Message is safe to display.
type Error struct {
	Kind       ErrorKind
	Message    string
	Suggestion string
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("payment %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func configurationError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

func preconditionError(msg string) *Error {
	return &Error{Kind: KindPrecondition, Message: msg}
}

// userMessager is implemented by transport errors that carry server text.
type userMessager interface {
	UserMessage() string
}

type suggester interface {
	SuggestionText() string
}

// backendError builds a retryable backend failure, preferring the server's own
// message over fallback.
func backendError(err error, fallback string) *Error {
	pe := &Error{Kind: KindBackend, Message: fallback, Retryable: true, Err: err}
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		pe.Message = um.UserMessage()
	}
	var sg suggester
	if errors.As(err, &sg) {
		pe.Suggestion = sg.SuggestionText()
	}
	return pe
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
