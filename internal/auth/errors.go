package auth

import "errors"

// ErrorKind classifies why a request failed authentication.
type ErrorKind int

const (
	KindMissingHeader ErrorKind = iota + 1
	KindMalformedHeader
	KindInactive
	KindProvider
	KindUnexpected
)

// String returns the metrics label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindMissingHeader:
		return "missing_header"
	case KindMalformedHeader:
		return "malformed_header"
	case KindInactive:
		return "inactive"
	case KindProvider:
		return "provider"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is an authentication failure. Every kind maps to 401.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return e.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the client-facing text for the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindMissingHeader:
		return "Authorization header is missing"
	case KindMalformedHeader:
		return "Invalid token format"
	case KindInactive:
		return "Token is not active"
	case KindProvider:
		return "Keycloak error: " + e.Detail
	default:
		return "Unexpected error: " + e.Detail
	}
}

func providerError(err error) *Error {
	return &Error{Kind: KindProvider, Detail: err.Error(), Err: err}
}

func unexpectedError(err error) *Error {
	return &Error{Kind: KindUnexpected, Detail: err.Error(), Err: err}
}

// AsError converts err to an *Error, classifying anything unknown as unexpected.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	return unexpectedError(err)
}
