package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/oshokin/crx-deploy/internal/version"
)

// Request is one POST to the package manager or the JSP console.
// The same Request is handed to the Transport again on every retry.
type Request struct {
	// URL is the absolute endpoint URL including credentials.
	URL string
	// Fields are the form fields.
	Fields url.Values
	// File is an optional file part; when set the form is sent as multipart.
	File *FilePart
	// Timeout bounds a single attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// FilePart is a file attached to a multipart form.
type FilePart struct {
	// Field is the form field name.
	Field string
	// Name is the file name reported to the server.
	Name string
	// Content is rewound before every attempt.
	Content io.ReadSeeker
}

// Response is what came back from the server.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport sends a Request and returns the server response.
// Implementations report an exceeded Request.Timeout as ErrRequestTimeout.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http Transport. It never follows redirects,
// because a redirect is itself the answer of the JSP console.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client, or a fresh client when nil.
// Redirect following is switched off on a copy of the client.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	var c http.Client
	if client != nil {
		c = *client
	}

	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &HTTPTransport{client: &c}
}

// Do posts req and reads the whole response body.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx, cancel := attemptContext(ctx, req.Timeout)
	defer cancel()

	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, req.URL, body)
	if err != nil {
		if closer, ok := body.(io.Closer); ok {
			_ = closer.Close()
		}

		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, attemptCtx, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, attemptCtx, fmt.Errorf("read response: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}

// attemptContext returns a context limited to timeout when it is positive,
// otherwise a cancellable child without a deadline.
func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

// transportError tags per-attempt timeouts with ErrRequestTimeout.
// A cancelled or expired parent context is not a transient condition.
func transportError(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", parent.Err(), err)
	}

	var netErr net.Error
	if errors.Is(attempt.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}

	return err
}

// encodeForm builds the request body. File uploads are streamed through a
// pipe so the archive is never held in memory.
func encodeForm(req *Request) (io.Reader, string, error) {
	if req.File == nil {
		return strings.NewReader(req.Fields.Encode()), "application/x-www-form-urlencoded", nil
	}

	if _, err := req.File.Content.Seek(0, io.SeekStart); err != nil {
		return nil, "", fmt.Errorf("rewind %s: %w", req.File.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, req))
	}()

	return pr, mw.FormDataContentType(), nil
}

func writeMultipart(mw *multipart.Writer, req *Request) error {
	keys := make([]string, 0, len(req.Fields))
	for key := range req.Fields {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		for _, value := range req.Fields[key] {
			if err := mw.WriteField(key, value); err != nil {
				return err
			}
		}
	}

	part, err := mw.CreateFormFile(req.File.Field, req.File.Name)
	if err != nil {
		return err
	}

	if _, err = io.Copy(part, req.File.Content); err != nil {
		return err
	}

	return mw.Close()
}
