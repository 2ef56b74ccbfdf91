package deploy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField is returned by NewSession when host, user or password is empty.
	ErrMissingField = errors.New("hostname, user and password are required")
	// ErrNegativeRetry is returned by NewSession for a retry budget below zero.
	ErrNegativeRetry = errors.New("retry budget must not be negative")
	// ErrRequestTimeout marks a request that did not complete within its timeout.
	// It is the only condition that is retried.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrApplicationFailure marks a response the server sent back without success.
	ErrApplicationFailure = errors.New("package manager reported a failure")
	// ErrNoPackagePath is returned by Install when neither an explicit path
	// nor a previous upload provides the package location.
	ErrNoPackagePath = errors.New("no package path available")
	// ErrTransport marks a request that failed for a reason other than a timeout.
	ErrTransport = errors.New("request failed")
)

// OperationError describes a failed session operation.
// errors.Is matches both its Kind and the underlying Err.
type OperationError struct {
	// Op is the operation name: upload, install or recompile.
	Op string
	// Kind is one of the package sentinel errors.
	Kind error
	// StatusCode is the HTTP status, zero when no response arrived.
	StatusCode int
	// Body is the raw response body kept for diagnostics.
	Body []byte
	// Attempts is how many requests were sent.
	Attempts int
	// Err is the underlying cause, if any.
	Err error
}

func (e *OperationError) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	b.WriteString(e.Kind.Error())

	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}

	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}

	if len(e.Body) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(string(e.Body)))
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap exposes Kind and Err to errors.Is and errors.As.
func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}
