package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrTokenMissing means the request carried no token cookie. Callers
	// treat it as anonymous, not as a rejection.
	ErrTokenMissing = errors.New("auth: token missing")
	ErrTokenInvalid = errors.New("auth: token invalid")
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenRevoked = errors.New("auth: token revoked")

	ErrCredentialMismatch = errors.New("auth: invalid username or password")
	ErrAccessDenied       = errors.New("auth: access denied")
	ErrStoreUnavailable   = errors.New("auth: credential store unavailable")
)

// TokenFailure classifies why a token did not verify.
type TokenFailure int

const (
	FailureMalformed TokenFailure = iota + 1
	FailureInvalidSignature
	FailureExpired
)

func (f TokenFailure) String() string {
	switch f {
	case FailureMalformed:
		return "malformed"
	case FailureInvalidSignature:
		return "invalid_signature"
	case FailureExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenError is returned by Codec.Verify.
type TokenError struct {
	Reason TokenFailure
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "auth: token " + e.Reason.String()
	}
	return "auth: token " + e.Reason.String() + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is maps the reason onto ErrTokenExpired or ErrTokenInvalid.
func (e *TokenError) Is(target error) bool {
	switch target {
	case ErrTokenExpired:
		return e.Reason == FailureExpired
	case ErrTokenInvalid:
		return e.Reason != FailureExpired
	}
	return false
}
