package deploy

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// packageServicePath is the package manager JSON service.
	packageServicePath = "/crx/packmgr/service/.json"
	// jspConsolePath is the Sling JSP console.
	jspConsolePath = "/system/console/slingjsp"

	// DefaultUploadTimeout bounds one upload attempt.
	DefaultUploadTimeout = 300 * time.Second
	// DefaultInstallTimeout bounds one install attempt.
	DefaultInstallTimeout = 300 * time.Second
	// DefaultRecompileTimeout bounds one recompile attempt.
	DefaultRecompileTimeout = 120 * time.Second
)

// Params are the connection settings of a Session.
type Params struct {
	// Host is host[:port] of the server.
	Host string
	// User is the basic authentication user.
	User string
	// Password is the plain password; NewSession encodes it.
	Password string
	// Retry is the number of times a timed out request is re-sent.
	// Nil disables retries, as does zero.
	Retry *int
}

// Timeouts bound a single attempt of each operation.
type Timeouts struct {
	Upload    time.Duration
	Install   time.Duration
	Recompile time.Duration
}

// DefaultTimeouts returns the timeouts the package manager endpoints expect.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Upload:    DefaultUploadTimeout,
		Install:   DefaultInstallTimeout,
		Recompile: DefaultRecompileTimeout,
	}
}

// Session is a deployment session against one server.
type Session struct {
	host     string
	user     string
	password string // Percent-encoded once in NewSession.
	retry    *int

	// uploadPath is the encoded repository path of the last uploaded package.
	uploadPath string

	transport Transport
	timeouts  Timeouts
}

// Option configures a Session.
type Option func(*Session)

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(s *Session) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithTimeouts overrides per-operation timeouts. Zero values keep the defaults.
func WithTimeouts(t Timeouts) Option {
	return func(s *Session) {
		if t.Upload > 0 {
			s.timeouts.Upload = t.Upload
		}

		if t.Install > 0 {
			s.timeouts.Install = t.Install
		}

		if t.Recompile > 0 {
			s.timeouts.Recompile = t.Recompile
		}
	}
}

// NewSession validates params and returns a Session ready for use.
func NewSession(params Params, opts ...Option) (*Session, error) {
	var missing []string

	if params.Host == "" {
		missing = append(missing, "host")
	}

	if params.User == "" {
		missing = append(missing, "user")
	}

	if params.Password == "" {
		missing = append(missing, "password")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMissingField, strings.Join(missing, ", "))
	}

	s := &Session{
		host:     params.Host,
		user:     params.User,
		password: encodeCredential(params.Password),
		timeouts: DefaultTimeouts(),
	}

	if params.Retry != nil {
		if *params.Retry < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeRetry, *params.Retry)
		}

		retry := *params.Retry
		s.retry = &retry
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		s.transport = NewHTTPTransport(nil)
	}

	return s, nil
}

// Host returns the server host.
func (s *Session) Host() string {
	return s.host
}

// User returns the authentication user.
func (s *Session) User() string {
	return s.user
}

// Password returns the encoded password as it appears in request URLs.
func (s *Session) Password() string {
	return s.password
}

// Retry returns the configured retry budget and whether one was set.
func (s *Session) Retry() (int, bool) {
	if s.retry == nil {
		return 0, false
	}

	return *s.retry, true
}

// UploadPath returns the encoded repository path of the last uploaded
// package, or an empty string before the first successful upload.
func (s *Session) UploadPath() string {
	return s.uploadPath
}

// endpoint builds an absolute URL with the credentials in the authority.
func (s *Session) endpoint(path string) string {
	return "http://" + s.user + ":" + s.password + "@" + s.host + path
}

// encodeCredential percent-encodes a password for the URL authority.
// QueryEscape writes spaces as '+', which userinfo would keep literally.
func encodeCredential(password string) string {
	return strings.ReplaceAll(url.QueryEscape(password), "+", "%20")
}

// encodeRepositoryPath escapes a repository path for use in a URL path,
// leaving the separators intact.
func encodeRepositoryPath(path string) string {
	return (&url.URL{Path: path}).EscapedPath()
}
