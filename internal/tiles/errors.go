package tiles

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Per-tile failures are local:
// the offending tile or branch is skipped and siblings proceed.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota + 1
	KindTileLoading
	KindNetwork
	KindIo
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindTileLoading:
		return "tile loading"
	case KindNetwork:
		return "network"
	case KindIo:
		return "io"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error carries a kind plus an optional wrapped cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a kind and context to err; nil stays nil.
func WrapErr(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or 0 when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
