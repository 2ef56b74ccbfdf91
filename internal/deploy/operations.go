package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/oshokin/crx-deploy/internal/logger"
)

const (
	opUpload    = "upload"
	opInstall   = "install"
	opRecompile = "recompile"

	// RecompiledMessage is returned when the JSP console acknowledges a recompile.
	RecompiledMessage = "JSPs recompiled"
)

// uploadReply is the package manager answer to an upload.
type uploadReply struct {
	Path string `json:"path"`
}

// InstallOption configures Install.
type InstallOption func(*installOptions)

type installOptions struct {
	path string
}

// WithPath installs the package already stored at path instead of the
// last uploaded one. The path becomes the session upload path.
func WithPath(path string) InstallOption {
	return func(o *installOptions) {
		o.path = path
	}
}

// Upload sends the package archive at packagePath to the package manager
// and returns the encoded repository path the server stored it under.
func (s *Session) Upload(ctx context.Context, packagePath string) (string, error) {
	ctx = logger.WithName(ctx, opUpload)

	archive, err := os.Open(filepath.Clean(packagePath))
	if err != nil {
		return "", fmt.Errorf("open package: %w", err)
	}

	defer func() {
		_ = archive.Close()
	}()

	req := &Request{
		URL: s.endpoint(packageServicePath),
		Fields: url.Values{
			"cmd":   {"upload"},
			"force": {"true"},
		},
		File: &FilePart{
			Field:   "package",
			Name:    filepath.Base(packagePath),
			Content: archive,
		},
		Timeout: s.timeouts.Upload,
	}

	logger.InfoKV(ctx, "Uploading package", "host", s.host, "package", packagePath)

	resp, attempts, err := s.send(ctx, opUpload, req)
	if err != nil {
		return "", err
	}

	if _, err = classifyResponse(opUpload, resp, attempts); err != nil {
		return "", err
	}

	var reply uploadReply
	if err = json.Unmarshal(resp.Body, &reply); err != nil || reply.Path == "" {
		return "", &OperationError{
			Op:         opUpload,
			Kind:       ErrApplicationFailure,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Attempts:   attempts,
			Err:        errors.New("response has no package path"),
		}
	}

	s.uploadPath = encodeRepositoryPath(reply.Path)

	logger.InfoKV(ctx, "Package uploaded", "path", s.uploadPath)

	return s.uploadPath, nil
}

// Install installs a package that is already in the repository.
// Without WithPath it installs the package from the last successful Upload.
func (s *Session) Install(ctx context.Context, opts ...InstallOption) (string, error) {
	ctx = logger.WithName(ctx, opInstall)

	var o installOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		s.uploadPath = o.path
	}

	if s.uploadPath == "" {
		return "", &OperationError{Op: opInstall, Kind: ErrNoPackagePath}
	}

	req := &Request{
		URL:     s.endpoint(packageServicePath + s.uploadPath),
		Fields:  url.Values{"cmd": {"install"}},
		Timeout: s.timeouts.Install,
	}

	logger.InfoKV(ctx, "Installing package", "host", s.host, "path", s.uploadPath)

	resp, attempts, err := s.send(ctx, opInstall, req)
	if err != nil {
		return "", err
	}

	message, err := classifyResponse(opInstall, resp, attempts)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Package installed", "path", s.uploadPath)

	return message, nil
}

// EasyInstall uploads the archive and installs the package the server
// reported for it.
func (s *Session) EasyInstall(ctx context.Context, packagePath string) (string, error) {
	if _, err := s.Upload(ctx, packagePath); err != nil {
		return "", err
	}

	return s.Install(ctx)
}

// Recompile asks the JSP console to recompile all scripts.
// The console answers a successful command with a redirect.
func (s *Session) Recompile(ctx context.Context) (string, error) {
	ctx = logger.WithName(ctx, opRecompile)

	req := &Request{
		URL:     s.endpoint(jspConsolePath),
		Fields:  url.Values{"cmd": {"recompile"}},
		Timeout: s.timeouts.Recompile,
	}

	logger.InfoKV(ctx, "Recompiling JSPs", "host", s.host)

	resp, attempts, err := s.send(ctx, opRecompile, req)
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusFound {
		return RecompiledMessage, nil
	}

	return classifyResponse(opRecompile, resp, attempts)
}

// send issues req until it gets a response, fails for a reason other than
// a timeout, or runs out of retries. It returns the number of attempts made.
func (s *Session) send(ctx context.Context, op string, req *Request) (*Response, int, error) {
	policy := newRetryPolicy(s.retry)

	for attempt := 1; ; attempt++ {
		logger.DebugKV(ctx, "Sending request", "attempt", attempt)

		resp, err := s.transport.Do(ctx, req)
		if err == nil {
			logger.DebugKV(ctx, "Received response", "status", resp.StatusCode, "body", string(resp.Body))

			return resp, attempt, nil
		}

		if !errors.Is(err, ErrRequestTimeout) {
			return nil, attempt, &OperationError{Op: op, Kind: ErrTransport, Attempts: attempt, Err: err}
		}

		if !policy.allow() {
			return nil, attempt, &OperationError{Op: op, Kind: ErrRequestTimeout, Attempts: attempt, Err: err}
		}

		logger.WarnKV(ctx, "Retrying request as there was a problem",
			"attempt", attempt, "retries_left", policy.remaining, "error", err)
	}
}

// classifyResponse runs Classify and attributes a failure to op.
func classifyResponse(op string, resp *Response, attempts int) (string, error) {
	message, err := Classify(resp.Body)
	if err == nil {
		return message, nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		opErr.Op = op
		opErr.StatusCode = resp.StatusCode
		opErr.Attempts = attempts
	}

	return "", err
}
