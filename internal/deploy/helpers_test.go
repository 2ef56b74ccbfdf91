package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeReply is one scripted transport outcome.
type fakeReply struct {
	resp *Response
	err  error
}

// fakeTransport replays scripted replies and records every request.
// Once the script is exhausted the last reply repeats.
type fakeTransport struct {
	replies  []fakeReply
	requests []*Request
	uploads  [][]byte
}

func (f *fakeTransport) Do(_ context.Context, req *Request) (*Response, error) {
	f.requests = append(f.requests, req)

	if req.File != nil {
		if _, err := req.File.Content.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}

		data, err := io.ReadAll(req.File.Content)
		if err != nil {
			return nil, err
		}

		f.uploads = append(f.uploads, data)
	}

	i := min(len(f.requests)-1, len(f.replies)-1)

	return f.replies[i].resp, f.replies[i].err
}

func okReply(status int, body string) fakeReply {
	return fakeReply{resp: &Response{StatusCode: status, Body: []byte(body)}}
}

func timeoutReply() fakeReply {
	return fakeReply{err: fmt.Errorf("%w: context deadline exceeded", ErrRequestTimeout)}
}

func intPtr(v int) *int {
	return &v
}

func newTestSession(t *testing.T, transport Transport, retry *int) *Session {
	t.Helper()

	s, err := NewSession(Params{
		Host:     "localhost:4502",
		User:     "admin",
		Password: "admin",
		Retry:    retry,
	}, WithTransport(transport))
	require.NoError(t, err)

	return s
}

func writePackage(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "site-content-1.0.zip")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}
