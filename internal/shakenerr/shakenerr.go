/**
 * @description
 * This file defines the typed error taxonomy that every core operation
 * surfaces to its caller. No exception-like panics escape the core;
 * every failure path returns one of these types.
 *
 * Key features:
 * - Typed Taxonomy: A small closed `Type` enum distinguishes caller-input
 *   mistakes from external-collaborator failures from cryptographic
 *   failures, so callers can branch on category without string matching.
 * - Wrapped Causes: `ShakenError.Unwrap` exposes the underlying error so
 *   `errors.Is`/`errors.As` keep working against a wrapped cause.
 *
 * @notes
 * - `Infra` is kept distinct from `Crypto`: a Redis outage or a disk
 *   write failure is an external-dependency problem, not a cryptographic
 *   one, and the two must not be indistinguishable to an HTTP caller.
 */

package shakenerr

import "fmt"

// Type is a coarse category for a ShakenError.
type Type int

const (
	Input Type = iota
	Profile
	NoCertificate
	Fetch
	StaleAfterRefetch
	KeyRead
	Signature
	Crypto
	Infra
)

func (t Type) String() string {
	switch t {
	case Input:
		return "InputError"
	case Profile:
		return "ProfileError"
	case NoCertificate:
		return "NoCertificateError"
	case Fetch:
		return "FetchError"
	case StaleAfterRefetch:
		return "StaleAfterRefetch"
	case KeyRead:
		return "KeyReadError"
	case Signature:
		return "SignatureError"
	case Crypto:
		return "CryptoError"
	case Infra:
		return "StoreError"
	default:
		return "UnknownError"
	}
}

// ShakenError is the single error type returned by every core operation.
type ShakenError struct {
	Type   Type
	Detail string
	Field  string // set for ProfileError: the offending field
	Err    error  // wrapped cause, if any
}

func (e *ShakenError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Type, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Detail)
}

func (e *ShakenError) Unwrap() error { return e.Err }

/**
 * @description
 * New builds a ShakenError of the given type with no wrapped cause.
 *
 * @param t The error category.
 * @param msg A printf-style message format.
 * @param args Arguments for msg.
 * @returns An error wrapping a *ShakenError of type t.
 */
func New(t Type, msg string, args ...interface{}) error {
	return &ShakenError{Type: t, Detail: fmt.Sprintf(msg, args...)}
}

/**
 * @description
 * Wrap builds a ShakenError of the given type, preserving cause so
 * `errors.Is`/`errors.As` can still reach it through Unwrap.
 *
 * @param t The error category.
 * @param cause The underlying error being wrapped.
 * @param msg A printf-style message format.
 * @param args Arguments for msg.
 * @returns An error wrapping a *ShakenError of type t.
 */
func Wrap(t Type, cause error, msg string, args ...interface{}) error {
	return &ShakenError{Type: t, Detail: fmt.Sprintf(msg, args...), Err: cause}
}

// Is reports whether err is a ShakenError of the given type.
func Is(err error, t Type) bool {
	se, ok := err.(*ShakenError)
	if !ok {
		return false
	}
	return se.Type == t
}

func InputError(msg string, args ...interface{}) error {
	return New(Input, msg, args...)
}

// ProfileErrorf builds a ProfileError naming the offending field, along
// with what was expected versus what was found.
func ProfileErrorf(field, expected, got string) error {
	return &ShakenError{
		Type:   Profile,
		Detail: fmt.Sprintf("expected %s=%q, got %q", field, expected, got),
		Field:  field,
	}
}

func NoCertificateError(msg string, args ...interface{}) error {
	return New(NoCertificate, msg, args...)
}

func FetchError(cause error, msg string, args ...interface{}) error {
	return Wrap(Fetch, cause, msg, args...)
}

func StaleAfterRefetchError(msg string, args ...interface{}) error {
	return New(StaleAfterRefetch, msg, args...)
}

func KeyReadError(cause error, msg string, args ...interface{}) error {
	return Wrap(KeyRead, cause, msg, args...)
}

func SignatureError(msg string, args ...interface{}) error {
	return New(Signature, msg, args...)
}

func CryptoError(cause error, msg string, args ...interface{}) error {
	return Wrap(Crypto, cause, msg, args...)
}

// StoreError wraps a failure in an external dependency the core relies
// on for persistence — the KV store or the cached-PEM filesystem —
// distinct from Crypto so a Redis outage isn't reported the same way
// as a broken ECDSA signature.
func StoreError(cause error, msg string, args ...interface{}) error {
	return Wrap(Infra, cause, msg, args...)
}
