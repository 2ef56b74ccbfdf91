package deploy

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewSession_MissingFields checks every combination of absent required fields.
func TestNewSession_MissingFields(t *testing.T) {
	t.Parallel()

	for mask := range 7 {
		params := Params{Host: "localhost:4502", User: "admin", Password: "admin"}
		if mask&1 == 0 {
			params.Host = ""
		}

		if mask&2 == 0 {
			params.User = ""
		}

		if mask&4 == 0 {
			params.Password = ""
		}

		s, err := NewSession(params)
		require.ErrorIs(t, err, ErrMissingField, "mask %03b", mask)
		require.Nil(t, s)
	}
}

// TestNewSession_MissingFieldsNamed reports which field is absent.
func TestNewSession_MissingFieldsNamed(t *testing.T) {
	t.Parallel()

	_, err := NewSession(Params{Host: "localhost:4502", User: "admin"})
	require.ErrorContains(t, err, "missing password")
}

// TestNewSession_EncodesPasswordOnce ensures the stored credential is
// escaped exactly once and decodes back to the original in request URLs.
func TestNewSession_EncodesPasswordOnce(t *testing.T) {
	t.Parallel()

	const raw = "p@ss w:rd/%+?"

	s, err := NewSession(Params{Host: "localhost:4502", User: "admin", Password: raw})
	require.NoError(t, err)

	encoded := s.Password()
	require.Equal(t, "p%40ss%20w%3Ard%2F%25%2B%3F", encoded)
	require.Equal(t, encoded, s.Password())

	u, err := url.Parse(s.endpoint(packageServicePath))
	require.NoError(t, err)

	password, ok := u.User.Password()
	require.True(t, ok)
	require.Equal(t, raw, password)
	require.Equal(t, "admin", u.User.Username())
	require.Equal(t, "localhost:4502", u.Host)
	require.Equal(t, 1, strings.Count(s.endpoint(jspConsolePath), encoded))
}

// TestNewSession_Retry distinguishes an absent budget from zero and rejects negatives.
func TestNewSession_Retry(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, new(fakeTransport), nil)
	_, ok := s.Retry()
	require.False(t, ok)

	s = newTestSession(t, new(fakeTransport), intPtr(0))
	retry, ok := s.Retry()
	require.True(t, ok)
	require.Zero(t, retry)

	budget := 3
	s = newTestSession(t, new(fakeTransport), &budget)
	budget = 10
	retry, _ = s.Retry()
	require.Equal(t, 3, retry)

	_, err := NewSession(Params{Host: "h", User: "u", Password: "p", Retry: intPtr(-1)})
	require.ErrorIs(t, err, ErrNegativeRetry)
}

// TestNewSession_Defaults checks accessors, default timeouts and the default transport.
func TestNewSession_Defaults(t *testing.T) {
	t.Parallel()

	s, err := NewSession(Params{Host: "author:4502", User: "deployer", Password: "pw"},
		WithTimeouts(Timeouts{Recompile: time.Minute}))
	require.NoError(t, err)

	require.Equal(t, "author:4502", s.Host())
	require.Equal(t, "deployer", s.User())
	require.Empty(t, s.UploadPath())
	require.IsType(t, new(HTTPTransport), s.transport)
	require.Equal(t, DefaultUploadTimeout, s.timeouts.Upload)
	require.Equal(t, DefaultInstallTimeout, s.timeouts.Install)
	require.Equal(t, time.Minute, s.timeouts.Recompile)
}

// TestEncodeRepositoryPath keeps separators and escapes the rest.
func TestEncodeRepositoryPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/etc/packages/x.zip", encodeRepositoryPath("/etc/packages/x.zip"))
	require.Equal(t, "/etc/packages/my%20group/pkg%201.0.zip",
		encodeRepositoryPath("/etc/packages/my group/pkg 1.0.zip"))
}
