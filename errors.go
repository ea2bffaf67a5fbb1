package chantal

import (
	"errors"
	"strings"
)

// Error is the chantal error domain type.
//
// Errors coming from chantal components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Implementers of chantal components should create an Error at the system
// boundary (e.g. when using a database client, the network, or reading a
// file) and intermediate layers should not wrap in another Error except to
// add additional [ErrorKind] information. That is to say, use [fmt.Errorf]
// with a "%w" verb in preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

// Assert this implements all the cool features.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents the error taxonomy from the error handling design.
//
// If an operation is unsure which kind to use, ErrInternal should be used.
type ErrorKind string

// Error implements error.
func (k ErrorKind) Error() string { return string(k) }

// Defined error kinds.
var (
	ErrConfig              = ErrorKind("config error")             // malformed or incomplete configuration
	ErrNetwork              = ErrorKind("network error")            // retryable I/O against an upstream
	ErrAuth                 = ErrorKind("auth error")               // fatal credential failure
	ErrSignature            = ErrorKind("signature error")          // signature verification failed; aborts sync for the repository
	ErrParse                = ErrorKind("parse error")               // fatal per-repository index parse failure
	ErrIntegrity            = ErrorKind("integrity error")           // sha256 mismatch; fatal per package, sync continues
	ErrIO                   = ErrorKind("io error")                  // filesystem error in the content store
	ErrConflict             = ErrorKind("conflict")                  // hardlink target exists pointing elsewhere
	ErrStillReferenced      = ErrorKind("still referenced")          // catalog deletion blocked by a live reference
	ErrUnknownCompression   = ErrorKind("unknown compression")       // codec could not detect a format
	ErrCancelled            = ErrorKind("cancelled")                 // context cancellation observed at a checkpoint
	ErrNotFound             = ErrorKind("not found")                 // blob, package, snapshot, or view absent
	ErrCrossDevice          = ErrorKind("cross device")              // hardlink target is on a different filesystem than the pool
	ErrInternal             = ErrorKind("internal error")            // unexpected failure with no more specific kind
)

// Retryable reports whether an operation tagged with this kind may succeed
// if attempted again, as consumed by the Sync Engine's download backoff.
func (k ErrorKind) Retryable() bool {
	return k == ErrNetwork
}
