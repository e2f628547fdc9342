package notifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// part is one section of a multipart/form-data body.
// size is the length of body, or -1 when it is not known up front.
type part struct {
	create func(mw *multipart.Writer) (io.Writer, error)
	body   io.Reader
	size   int64
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// jsonPart encodes v up front so marshalling errors surface before any I/O.
func jsonPart(name string, v any) (part, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return part{}, fmt.Errorf("encoding %s part: %w", name, err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", "application/json; charset=utf-8")
	return part{
		create: func(mw *multipart.Writer) (io.Writer, error) { return mw.CreatePart(h) },
		body:   bytes.NewReader(data),
		size:   int64(len(data)),
	}, nil
}

func fieldPart(name, value string) part {
	return part{
		create: func(mw *multipart.Writer) (io.Writer, error) { return mw.CreateFormField(name) },
		body:   strings.NewReader(value),
		size:   int64(len(value)),
	}
}

func filePart(name, filename string, r io.Reader) part {
	return part{
		create: func(mw *multipart.Writer) (io.Writer, error) { return mw.CreateFormFile(name, filename) },
		body:   r,
		size:   readerSize(r),
	}
}

// readerSize reports the remaining length of r when r is a regular file
// at its start, -1 otherwise.
func readerSize(r io.Reader) int64 {
	f, ok := r.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		return -1
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return -1
	}
	if s, ok := r.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err != nil || off != 0 {
			return -1
		}
	}
	return info.Size()
}

// pipeBody streams a request body produced by a writer goroutine.
// finish must be called once the request is done; after it returns
// nothing reads from the sources handed to the writer any more.
type pipeBody struct {
	*io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	size int64 // -1 when unknown
}

func newPipeBody() *pipeBody {
	pr, pw := io.Pipe()
	return &pipeBody{PipeReader: pr, pw: pw, done: make(chan struct{}), size: -1}
}

func (b *pipeBody) start(write func() error) {
	go func() {
		defer close(b.done)
		b.pw.CloseWithError(write())
	}()
}

// finish unblocks the writer if the transport stopped reading early and waits for it
func (b *pipeBody) finish() {
	b.PipeReader.Close()
	<-b.done
}

// newFormBody returns a streaming multipart body and its Content-Type.
// The body knows its encoded length when every part size is known.
func newFormBody(parts []part) (*pipeBody, string) {
	b := newPipeBody()
	mw := multipart.NewWriter(b.pw)
	contentType := mw.FormDataContentType()
	b.size = formLength(mw.Boundary(), parts)
	b.start(func() error {
		for _, p := range parts {
			w, err := p.create(mw)
			if err != nil {
				return err
			}
			if _, err := io.Copy(w, p.body); err != nil {
				return err
			}
		}
		return mw.Close()
	})
	return b, contentType
}

// formLength is the encoded size of parts under boundary, or -1 if any part size is unknown.
// Only the headers and delimiters are rendered; part bodies are counted, not read.
func formLength(boundary string, parts []part) int64 {
	var framing countWriter
	mw := multipart.NewWriter(&framing)
	if err := mw.SetBoundary(boundary); err != nil {
		return -1
	}
	var total int64
	for _, p := range parts {
		if p.size < 0 {
			return -1
		}
		if _, err := p.create(mw); err != nil {
			return -1
		}
		total += p.size
	}
	if err := mw.Close(); err != nil {
		return -1
	}
	return total + int64(framing)
}

type countWriter int64

func (c *countWriter) Write(p []byte) (int, error) {
	*c += countWriter(len(p))
	return len(p), nil
}

// newStreamBody passes r through unchanged
func newStreamBody(r io.Reader) *pipeBody {
	b := newPipeBody()
	b.size = readerSize(r)
	b.start(func() error {
		_, err := io.Copy(b.pw, r)
		return err
	})
	return b
}

// newRequest builds an outgoing request. A streamed body of known size is
// sent with a Content-Length instead of chunked encoding.
func newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if b, ok := body.(*pipeBody); ok && b.size > 0 {
		req.ContentLength = b.size
	}
	return req, nil
}
