package bcfy

import "fmt"

// AuthError reports a failed login, a rejected or expired token, or an
// account that is not entitled to the calls platform.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a transport failure or a non-2xx response from the
// remote API. Callers own any retry policy.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a response whose shape does not match the expected
// schema. The API is an unofficial contract and can drift.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Op, e.Err)
	}
	return "parse " + e.Op + ": unexpected response shape"
}

func (e *ParseError) Unwrap() error { return e.Err }

// StateError reports an operation invoked in the wrong lifecycle state,
// such as polling a live session before initializing it.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return "state: " + e.Reason }
