// Package proxyerr classifies failures inside a proxied connection.
//
// Every error returned from connection handling, the dialers and the SOCKS5
// client carries one of a small set of kinds so the connection's top-level
// handler can log and count it without inspecting messages.
package proxyerr

import (
	"errors"
	"fmt"
)

// Kind is the class of a proxy failure.
type Kind uint8

const (
	// KindUnknown is reported for errors that were never classified.
	KindUnknown Kind = iota
	// KindIO covers transport read, write, connect and bind failures.
	KindIO
	// KindHTTP covers malformed or unrepresentable HTTP framing.
	KindHTTP
	// KindParse covers malformed numeric fields such as a port.
	KindParse
	// KindBadRequest covers client-supplied data failing protocol preconditions.
	KindBadRequest
	// KindServer covers failure statuses reported by the SOCKS5 server.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindBadRequest:
		return "bad_request"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns err tagged with kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IO tags err as a transport failure.
func IO(op string, err error) error {
	return New(KindIO, op, err)
}

// HTTP tags err as an HTTP framing failure.
func HTTP(op string, err error) error {
	return New(KindHTTP, op, err)
}

// Parse tags err as a numeric parse failure.
func Parse(op string, err error) error {
	return New(KindParse, op, err)
}

// BadRequest returns a client precondition failure with the given message.
func BadRequest(op, msg string) error {
	return New(KindBadRequest, op, errors.New(msg))
}

// Server returns a SOCKS5 server failure with the given message.
func Server(op, msg string) error {
	return New(KindServer, op, errors.New(msg))
}

// KindOf reports the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
