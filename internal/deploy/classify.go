package deploy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// redirectMarker is the status line some console endpoints put in the
	// body of a redirect sent after a successful command.
	redirectMarker = "302 Found"
	// redirectMessage is returned when a body is accepted by the redirect rule.
	redirectMessage = "JSPs Recompiled"
)

// serviceStatus is the part of a package manager reply the classifier reads.
type serviceStatus struct {
	Success bool `json:"success"`
}

// Classify decides whether a package manager response body reports success.
// On success it returns the message to show the operator; otherwise the error
// is an *OperationError of kind ErrApplicationFailure carrying the body.
func Classify(body []byte) (string, error) {
	var status serviceStatus

	parseErr := json.Unmarshal(body, &status)
	if parseErr == nil && status.Success {
		return string(body), nil
	}

	if message, ok := classifyRedirect(body); ok {
		return message, nil
	}

	failure := &OperationError{
		Kind: ErrApplicationFailure,
		Body: body,
	}

	if parseErr != nil {
		failure.Err = fmt.Errorf("decode response: %w", parseErr)
	}

	return "", failure
}

// classifyRedirect accepts bodies of redirect pages as success.
// Kept apart from the JSON path so it can be dropped on its own.
func classifyRedirect(body []byte) (string, bool) {
	if bytes.Contains(body, []byte(redirectMarker)) {
		return redirectMessage, true
	}

	return "", false
}
