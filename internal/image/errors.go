package image

import (
	"errors"
	"fmt"
)

// Kind classifies why a generation failed.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindTimeout
	KindUpstream
	KindData
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindUpstream:
		return "upstream"
	case KindData:
		return "data"
	default:
		return "unexpected"
	}
}

type Error struct {
	Kind Kind
	Msg  string

	// Status and Body hold the raw upstream response when there was one.
	Status int
	Body   string

	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Msg
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err. Errors not produced by this package are
// unexpected by definition.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}
