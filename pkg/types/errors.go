package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures a forecast run can end with so callers
// can branch on the kind instead of matching messages.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindConfiguration means a required column is missing from the PV
	// history table.
	ErrorKindConfiguration
	// ErrorKindDataNotFound means no history rows match the calendar day.
	ErrorKindDataNotFound
	// ErrorKindInsufficientData means the weather source did not cover the
	// two days needed.
	ErrorKindInsufficientData
	// ErrorKindAlignment means PV history and weather share no hour of day.
	ErrorKindAlignment
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConfiguration:
		return "configuration"
	case ErrorKindDataNotFound:
		return "dataNotFound"
	case ErrorKindInsufficientData:
		return "insufficientData"
	case ErrorKindAlignment:
		return "alignment"
	default:
		return "unknown"
	}
}

// Error is a classified forecast error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

var (
	ErrConfiguration    = &Error{Kind: ErrorKindConfiguration}
	ErrDataNotFound     = &Error{Kind: ErrorKindDataNotFound}
	ErrInsufficientData = &Error{Kind: ErrorKindInsufficientData}
	ErrAlignment        = &Error{Kind: ErrorKindAlignment}
)

// NewError returns an Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or
// ErrorKindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}
