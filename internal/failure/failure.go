// Package failure defines the error kinds shared by the API client, the mutation
// coordinator and the access guard.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindServer       Kind = "server"
)

// Failure is a typed, recoverable error. Message holds the text to show the user
// verbatim (usually supplied by the server); it may be empty.
type Failure struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	var b strings.Builder
	if f.Op != "" {
		b.WriteString(f.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(f.Kind))
	if f.Status != 0 {
		fmt.Fprintf(&b, " (%d)", f.Status)
	}
	switch {
	case f.Message != "":
		b.WriteString(": ")
		b.WriteString(f.Message)
	case f.Err != nil:
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the same request may succeed if issued again.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	}
	return false
}

// Retryable reports whether err carries a Failure that may succeed on a second try.
func Retryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable()
}

func Validation(msg string) *Failure {
	return &Failure{Kind: KindValidation, Message: msg}
}

func Conflict(id string) *Failure {
	return &Failure{Kind: KindConflict, Message: fmt.Sprintf("a change to %s is already in flight", id)}
}

// KindOf returns the kind of err, or "" when err does not wrap a *Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// MessageOf returns the user-facing message carried by err, if any.
func MessageOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return strings.TrimSpace(f.Message)
	}
	return ""
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsAuth reports whether err should be answered by the access guard rather than
// surfaced as a notification.
func IsAuth(err error) bool {
	k := KindOf(err)
	return k == KindUnauthorized || k == KindForbidden
}
