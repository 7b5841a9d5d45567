// Package delivery defines the outcome and failure taxonomy shared by the
// push, email and messaging adapters.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a delivery failure.
type Kind int

const (
	// KindConfiguration means the adapter is missing credentials. The channel
	// stays unavailable until reconfigured.
	KindConfiguration Kind = iota
	// KindTransient covers timeouts, 5xx responses and network failures.
	KindTransient
	// KindPermanent means the target is gone (push endpoint 404/410).
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	}
	return "unknown"
}

// Error is a classified delivery failure.
type Error struct {
	Kind    Kind
	Channel string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failure: %v", e.Channel, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Configuration(channel string, err error) *Error {
	return &Error{Kind: KindConfiguration, Channel: channel, Err: err}
}

func Transient(channel string, err error) *Error {
	return &Error{Kind: KindTransient, Channel: channel, Err: err}
}

func Permanent(channel string, err error) *Error {
	return &Error{Kind: KindPermanent, Channel: channel, Err: err}
}

// KindOf returns the kind of a classified error. Unclassified errors are transient.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Status is the result of one channel for one notification.
type Status int

const (
	// StatusSkipped means there was no target (no address, no active device).
	StatusSkipped Status = iota
	StatusOK
	StatusFailed
	// StatusBlocked means the preference policy declined the channel. It is not a failure.
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

// Outcome is what an adapter returns instead of panicking or throwing.
type Outcome struct {
	Status Status
	Err    error
}

func OK() Outcome { return Outcome{Status: StatusOK} }

func Failed(err error) Outcome { return Outcome{Status: StatusFailed, Err: err} }

func Blocked() Outcome { return Outcome{Status: StatusBlocked} }

func Skipped() Outcome { return Outcome{Status: StatusSkipped} }

func (o Outcome) OK() bool { return o.Status == StatusOK }

// Attempted reports whether the adapter actually tried to reach the target.
func (o Outcome) Attempted() bool {
	if o.Status == StatusOK {
		return true
	}
	return o.Status == StatusFailed && KindOf(o.Err) != KindConfiguration
}

// Permanent reports whether the outcome is a permanent target failure.
func (o Outcome) Permanent() bool {
	return o.Status == StatusFailed && KindOf(o.Err) == KindPermanent
}
