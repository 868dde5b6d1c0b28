// Package cxserr implements the error taxonomy of the CXS API. Every error
// crossing the API boundary carries a numeric Code. The codes are stable and
// they travel also inside the async results.
package cxserr

import (
	"errors"
	"fmt"
)

type Code uint32

const (
	Success Code = 0

	UnknownError Code = 1000 + iota
	InvalidParam
	InvalidHandle
	InvalidState
	NoDataAvailable
	WalletError
	LedgerError
	CryptoError
	ConnectionError
	InvalidJSON
	AlreadyRegistered
)

func (c Code) String() string {
	switch c {
	case Success:
		return "Success"
	case InvalidParam:
		return "InvalidParam"
	case InvalidHandle:
		return "InvalidHandle"
	case InvalidState:
		return "InvalidState"
	case NoDataAvailable:
		return "NoDataAvailable"
	case WalletError:
		return "WalletError"
	case LedgerError:
		return "LedgerError"
	case CryptoError:
		return "CryptoError"
	case ConnectionError:
		return "ConnectionError"
	case InvalidJSON:
		return "InvalidJSON"
	case AlreadyRegistered:
		return "AlreadyRegistered"
	default:
		return "UnknownError"
	}
}

// Error is the error type of the API. Param is set only for InvalidParam
// errors and tells the 1-based index of the malformed argument.
type Error struct {
	Code  Code
	Param int
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	s := e.Code.String()
	if e.Code == InvalidParam && e.Param > 0 {
		s = fmt.Sprintf("%s%d", s, e.Param)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, which lets callers use the
// sentinel values with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Param == 0 || t.Param == e.Param)
}

var (
	ErrUnknown           = &Error{Code: UnknownError}
	ErrInvalidParam      = &Error{Code: InvalidParam}
	ErrInvalidHandle     = &Error{Code: InvalidHandle}
	ErrInvalidState      = &Error{Code: InvalidState}
	ErrNoDataAvailable   = &Error{Code: NoDataAvailable}
	ErrWallet            = &Error{Code: WalletError}
	ErrLedger            = &Error{Code: LedgerError}
	ErrCrypto            = &Error{Code: CryptoError}
	ErrConnection        = &Error{Code: ConnectionError}
	ErrInvalidJSON       = &Error{Code: InvalidJSON}
	ErrAlreadyRegistered = &Error{Code: AlreadyRegistered}
)

func New(c Code, format string, a ...any) *Error {
	return &Error{Code: c, Msg: fmt.Sprintf(format, a...)}
}

// Wrap annotates err with the code unless err already carries a code, in which
// case the inner code wins.
func Wrap(c Code, err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: c, Msg: fmt.Sprintf(format, a...), Err: err}
}

func Param(n int, format string, a ...any) *Error {
	return &Error{Code: InvalidParam, Param: n, Msg: fmt.Sprintf(format, a...)}
}

func State(format string, a ...any) *Error {
	return New(InvalidState, format, a...)
}

// CodeOf returns the code of the err. Nil means Success and errors without a
// code are UnknownError.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}
