// Package errs implements the error taxonomy shared by every protocol layer.
package errs

import "fmt"

// Kind classifies an error the way the protocol layer needs to react to it.
type Kind int

const (
	// InvalidArgument is an out-of-range parameter supplied by the caller.
	InvalidArgument Kind = iota
	// DomainFailure means CheckGroup rejected the shared domain parameters.
	DomainFailure
	// CryptoFailure is a MAC mismatch, failed proof, or bad subgroup element.
	CryptoFailure
	// ProtocolViolation is a malformed message, duplicate ack, or sequence skew.
	ProtocolViolation
	// Transient is a timeout or EOF; the caller may retry.
	Transient
	// Disqualified means the local party fell out of QUAL.
	Disqualified
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case DomainFailure:
		return "domain failure"
	case CryptoFailure:
		return "crypto failure"
	case ProtocolViolation:
		return "protocol violation"
	case Transient:
		return "transient"
	case Disqualified:
		return "disqualified"
	default:
		return "unknown"
	}
}

// Error is the typed error carried by every package in this module.
type Error struct {
	kind  Kind
	msg   string
	peer  string // optional: party this error is scoped to, empty if none
	cause error
}

func (e *Error) Error() string {
	if e.peer != "" {
		return fmt.Sprintf("%s: %s (peer %s)", e.kind, e.msg, e.peer)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Peer returns the party this error is scoped to, or "" if none.
func (e *Error) Peer() string { return e.peer }

// New builds an unscoped error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// ForPeer scopes an error to a specific party, per the propagation policy:
// peer-scoped CryptoFailure/ProtocolViolation are recorded locally and the
// protocol continues until its complaint-resolution step decides QUAL.
func ForPeer(kind Kind, peer string, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), peer: peer}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if te, ok := err.(*Error); ok {
			e = te
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.kind == kind
}

// Warning is a non-fatal, peer-scoped event surfaced to the caller instead
// of being written to a log: messages whose declared sender, sequence, or
// action fall outside the valid domain are discarded with a warning
// rather than aborting the protocol run.
type Warning struct {
	Peer string
	Text string
}

func (w Warning) String() string {
	if w.Peer == "" {
		return w.Text
	}
	return fmt.Sprintf("%s (peer %s)", w.Text, w.Peer)
}

// Warnings accumulates Warning values across a protocol run.
type Warnings struct {
	items []Warning
}

// Add records a new warning.
func (w *Warnings) Add(peer, format string, args ...interface{}) {
	w.items = append(w.items, Warning{Peer: peer, Text: fmt.Sprintf(format, args...)})
}

// All returns every warning recorded so far.
func (w *Warnings) All() []Warning {
	return w.items
}
