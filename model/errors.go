package model

import "errors"

// Kind classifies a trust-ring failure. Rejected signatures are not errors:
// verification reports them as a false result.
type Kind string

const (
	// KindUnsupportedKeyType: a key type outside the closed KeyType set.
	KindUnsupportedKeyType Kind = "UnsupportedKeyType"
	// KindUninitializedStore: a trust ring was used before Load or Scrub.
	KindUninitializedStore Kind = "UninitializedStore"
	// KindMalformedRecord: a persisted ring is not a whole number of records.
	KindMalformedRecord Kind = "MalformedRecord"
	// KindFutureTimestamp: an attestation is dated after the verifier's clock.
	KindFutureTimestamp Kind = "FutureTimestamp"
	// KindIntegerRange: a timestamp is negative or beyond MaxTimestamp.
	KindIntegerRange Kind = "IntegerRangeExceeded"
	// KindInvalidInput: a caller-supplied handle, fingerprint or key is unusable.
	KindInvalidInput Kind = "InvalidInput"
	// KindCrypto: a hash or AEAD primitive failed, including a wrong passphrase.
	KindCrypto Kind = "Crypto"
)

// Error carries a Kind and a RuleID of the form TRUST-<AREA>-<NNN>, so a
// failure can be traced to the exact check that raised it. Message and Cause
// are for logs.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns a structured error without a cause.
func NewError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// WrapError returns a structured error carrying cause.
func WrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether any *Error in err's chain has kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the rule of the first *Error in err's chain, or "".
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
