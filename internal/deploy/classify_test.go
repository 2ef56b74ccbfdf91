package deploy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClassify_Success returns the original body for a successful reply.
func TestClassify_Success(t *testing.T) {
	t.Parallel()

	body := `{"success":true,"msg":"Package installed","path":"/etc/packages/x.zip"}`

	message, err := Classify([]byte(body))
	require.NoError(t, err)
	require.Equal(t, body, message)
}

// TestClassify_RedirectMarker accepts redirect pages that carry no success flag.
func TestClassify_RedirectMarker(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`<html><head><title>302 Found</title></head></html>`,
		`{"status":"302 Found"}`,
	} {
		message, err := Classify([]byte(body))
		require.NoError(t, err, body)
		require.Equal(t, "JSPs Recompiled", message)
	}
}

// TestClassify_Failure keeps the server body when success is false or missing.
func TestClassify_Failure(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`{"success": false, "msg": "bad archive"}`,
		`{"msg": "no flag"}`,
		`{"success": "true"}`,
	} {
		_, err := Classify([]byte(body))
		require.ErrorIs(t, err, ErrApplicationFailure, body)

		var opErr *OperationError
		require.ErrorAs(t, err, &opErr)
		require.Equal(t, body, string(opErr.Body))
	}
}

// TestClassify_Unparsable wraps the parse error next to the raw body.
func TestClassify_Unparsable(t *testing.T) {
	t.Parallel()

	_, err := Classify([]byte("<html>Internal Server Error</html>"))
	require.ErrorIs(t, err, ErrApplicationFailure)

	var syntaxErr *json.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	require.Contains(t, err.Error(), "Internal Server Error")
}
