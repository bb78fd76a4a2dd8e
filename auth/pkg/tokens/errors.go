package tokens

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies why a caller was not authenticated or authorized.
type AuthErrorKind int

const (
	KindMissingCredential AuthErrorKind = iota + 1
	KindMalformed
	KindInvalidSignature
	KindExpired
	KindWrongRole
)

func (k AuthErrorKind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindMalformed:
		return "malformed"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindExpired:
		return "expired"
	case KindWrongRole:
		return "wrong_role"
	default:
		return "unknown"
	}
}

// AuthError is returned by Verify and Authorize.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Kind.String()
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Forbidden reports whether the caller authenticated but holds the wrong role.
func (e *AuthError) Forbidden() bool { return e.Kind == KindWrongRole }

// IsKind reports whether err is an *AuthError of the given kind.
func IsKind(err error, kind AuthErrorKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// ErrMissingCredential is returned when no bearer token was presented.
var ErrMissingCredential = &AuthError{Kind: KindMissingCredential}
