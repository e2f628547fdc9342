package notifiers

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Fullex26/camnotify/pkg/models"
)

// Compile-time checks that all notifier types implement the Notifier interface.
var (
	_ Notifier = (*Webhook)(nil)
	_ Notifier = (*Discord)(nil)
	_ Notifier = (*Ntfy)(nil)
	_ Notifier = (*Telegram)(nil)
	_ Notifier = (*Filter)(nil)
)

type capturedPart struct {
	name        string
	filename    string
	contentType string
	data        []byte
}

type capturedRequest struct {
	method           string
	path             string
	header           http.Header
	contentLength    int64
	transferEncoding []string
	size             int    // bytes actually received
	body             []byte // raw body when not multipart
	parts            []capturedPart
}

// newCaptureServer answers every request with status and records what it received.
func newCaptureServer(t *testing.T, status int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	reqs := make(chan capturedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := capturedRequest{
			method:           r.Method,
			path:             r.URL.Path,
			header:           r.Header.Clone(),
			contentLength:    r.ContentLength,
			transferEncoding: r.TransferEncoding,
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading body: %v", err)
		}
		got.size = len(raw)
		mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
			for {
				p, err := mr.NextPart()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Errorf("next part: %v", err)
					break
				}
				data, _ := io.ReadAll(p)
				got.parts = append(got.parts, capturedPart{
					name:        p.FormName(),
					filename:    p.FileName(),
					contentType: p.Header.Get("Content-Type"),
					data:        data,
				})
			}
		} else {
			got.body = raw
		}
		reqs <- got
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

// receive returns the captured request or fails if none arrived.
func receive(t *testing.T, reqs <-chan capturedRequest) capturedRequest {
	t.Helper()
	select {
	case r := <-reqs:
		return r
	default:
		t.Fatal("server received no request")
	}
	return capturedRequest{}
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeImage counts how often its stream is opened and closed.
type fakeImage struct {
	name    string
	data    []byte
	openErr error
	opened  atomic.Int32
	closed  atomic.Int32
}

func newFakeImage(name, data string) *fakeImage {
	return &fakeImage{name: name, data: []byte(data)}
}

func (f *fakeImage) FileName() string { return f.name }

func (f *fakeImage) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened.Add(1)
	return &trackedStream{r: bytes.NewReader(f.data), img: f}, nil
}

type trackedStream struct {
	r   io.Reader
	img *fakeImage
}

func (s *trackedStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *trackedStream) Close() error {
	s.img.closed.Add(1)
	return nil
}

// writeImage saves data as a snapshot file on disk.
func writeImage(t *testing.T, name, data string) models.FileImage {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return models.FileImage{Path: path}
}

type roundTripFunc func(req *http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

// redirectTransport creates a transport that redirects all requests to the given base URL.
func redirectTransport(baseURL string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) *http.Response {
		newURL := baseURL + req.URL.Path
		req2, _ := http.NewRequest(req.Method, newURL, req.Body)
		req2.Header = req.Header
		resp, err := http.DefaultTransport.RoundTrip(req2)
		if err != nil {
			return &http.Response{
				StatusCode: http.StatusBadGateway,
				Body:       io.NopCloser(strings.NewReader(err.Error())),
			}
		}
		return resp
	})
}
