package crud

import (
	"errors"
	"fmt"

	"golang.org/x/text/message"
)

// Kind classifies an operation failure. The string values are part of the
// wire contract.
type Kind string

const (
	// KindValidation marks a malformed or missing argument, detected before
	// any store interaction.
	KindValidation Kind = "ValidationError"

	// KindNotConnected marks a data operation attempted without a session.
	KindNotConnected Kind = "NotConnectedError"

	// KindConnection marks a connect-time failure: malformed descriptor,
	// unreachable store or rejected credentials.
	KindConnection Kind = "ConnectionError"

	// KindStore marks a failure of an otherwise valid store interaction.
	KindStore Kind = "StoreError"
)

// Error is the classified failure of one operation.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Message is a human-readable summary.
	Message string

	// Cause is the underlying technical error, if any.
	Cause error

	key  string
	args []any
}

// newError builds an Error whose message is the catalog entry key
// formatted with args. Message holds the English rendering.
func newError(kind Kind, cause error, key string, args ...any) *Error {
	return &Error{Kind: kind, Message: defaultPrinter.Sprintf(key, args...), Cause: cause, key: key, args: args}
}

// Localize renders the message with p. Errors built without a catalog key
// keep their Message.
func (e *Error) Localize(p *message.Printer) string {
	if p == nil || e.key == "" {
		return e.Message
	}
	return p.Sprintf(e.key, e.args...)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the Kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationf(key string, args ...any) *Error {
	return newError(KindValidation, nil, key, args...)
}
