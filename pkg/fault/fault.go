package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("restricted for deletion")
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
	// The survey definition itself is structurally invalid.
	ErrDefinition
	// A submitted value violates the contract of the item it answers.
	ErrResponse
)

type Fault struct {
	Type    ErrorType
	Message string
	// ItemID names the offending survey item, when there is one.
	ItemID string
	Err    error
}

func (e *Fault) Error() string {
	msg := e.Message
	if e.ItemID != "" {
		msg = fmt.Sprintf("%s: %s", e.ItemID, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.typeString(), msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.typeString(), msg)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *Fault) Unwrap() error {
	return e.Err
}

// typeString returns a human-readable representation of the error type.
func (e *Fault) typeString() string {
	switch e.Type {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	case ErrDefinition:
		return "MalformedDefinition"
	case ErrResponse:
		return "InvalidResponse"
	default:
		return "UnknownError"
	}
}

// NewClientError creates a new client error.
func NewClientError(msg string, err error) error {
	return &Fault{
		Type:    ErrClient,
		Message: msg,
		Err:     err,
	}
}

// NewInternalError creates a new internal server error.
func NewInternalError(msg string, err error) error {
	return &Fault{
		Type:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// NewDefinitionError reports a malformed survey definition. itemID may be
// empty when the problem is with the survey as a whole.
func NewDefinitionError(itemID, msg string, err error) error {
	return &Fault{
		Type:    ErrDefinition,
		Message: msg,
		ItemID:  itemID,
		Err:     err,
	}
}

// NewResponseError reports a submitted value rejected by the item itemID.
func NewResponseError(itemID, msg string, err error) error {
	return &Fault{
		Type:    ErrResponse,
		Message: msg,
		ItemID:  itemID,
		Err:     err,
	}
}

// IsClientError checks if an error is a client error. Invalid responses are
// client errors.
func IsClientError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrClient || ce.Type == ErrResponse
	}
	return false
}

// IsInternalError checks if an error is an internal error. A malformed
// definition is a server misconfiguration, so it counts as internal.
func IsInternalError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrInternal || ce.Type == ErrDefinition
	}
	return false
}

// IsDefinitionError checks if an error reports a malformed definition.
func IsDefinitionError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrDefinition
	}
	return false
}

// IsResponseError checks if an error reports an invalid response.
func IsResponseError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrResponse
	}
	return false
}

// ItemID returns the survey item named by the first Fault in err's chain.
func ItemID(err error) string {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.ItemID
	}
	return ""
}
