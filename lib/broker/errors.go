package broker

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint64

const (
	ErrCodeInternal        ErrCode = iota // 0: Internal consistency violation.
	ErrCodeNotImplemented                 // 1: Capability missing in the backend.
	ErrCodeInvalidArgument                // 2: Malformed key, nil callback or invalid token.
	ErrCodeEmpty                          // 3: No answer available and none will arrive.
	ErrCodeAlreadyResolved                // 4: Second resolve attempt on a token.
	ErrCodeReleased                       // 5: Use of a fully released token.
	ErrCodeClosed                         // 6: Operation on a closed database.
)

func (c ErrCode) String() string {
	switch c {
	case ErrCodeInternal:
		return "Internal"
	case ErrCodeNotImplemented:
		return "NotImplemented"
	case ErrCodeInvalidArgument:
		return "InvalidArgument"
	case ErrCodeEmpty:
		return "Empty"
	case ErrCodeAlreadyResolved:
		return "AlreadyResolved"
	case ErrCodeReleased:
		return "Released"
	case ErrCodeClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps an ErrCode and an error message.
// It is used for all synchronous faults of the broker and the database
// façade. Backend fetch failures are not of this type: they travel inside a
// Response as data, not as a fault.
type Error struct {
	Code ErrCode // The error code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("BrokerError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf extracts the ErrCode from an error. The boolean return value
// indicates whether the error is a broker Error.
func CodeOf(err error) (ErrCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
