package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
)

// CapturedResponse is a fully drained response held for logging and replay.
type CapturedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text decodes the body for the log, replacing invalid UTF-8.
func (cr *CapturedResponse) Text() string {
	return strings.ToValidUTF8(string(cr.Body), "\uFFFD")
}

// Replay sends the captured status, headers and body to w, the body as one chunk.
// With no status captured only the headers are copied, leaving net/http to
// send its implicit 200.
func (cr *CapturedResponse) Replay(w http.ResponseWriter) error {
	dst := w.Header()
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range cr.Header {
		dst[k] = v
	}
	if cr.StatusCode == 0 {
		return nil
	}
	w.WriteHeader(cr.StatusCode)
	if len(cr.Body) == 0 {
		return nil
	}
	_, err := w.Write(cr.Body)
	return err
}

// captureWriter swallows everything a handler writes, flushes included, so
// nothing reaches the client until the response is replayed.
type captureWriter struct {
	header http.Header
	status int
	wrote  bool
	body   bytes.Buffer
}

// newCaptureWriter returns the capture state and a writer exposing the same
// optional interfaces as w with every write path diverted into the capture.
func newCaptureWriter(w http.ResponseWriter) (*captureWriter, http.ResponseWriter) {
	cw := &captureWriter{header: w.Header().Clone()}
	wrapped := httpsnoop.Wrap(w, httpsnoop.Hooks{
		Header: func(httpsnoop.HeaderFunc) httpsnoop.HeaderFunc {
			return func() http.Header { return cw.header }
		},
		WriteHeader: func(httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return cw.writeHeader
		},
		Write: func(httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return cw.write
		},
		ReadFrom: func(httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return cw.readFrom
		},
		Flush: func(httpsnoop.FlushFunc) httpsnoop.FlushFunc {
			return func() {}
		},
	})
	return cw, wrapped
}

func (cw *captureWriter) writeHeader(code int) {
	if cw.wrote {
		return
	}
	cw.status = code
	cw.wrote = true
}

func (cw *captureWriter) write(p []byte) (int, error) {
	if !cw.wrote {
		cw.writeHeader(http.StatusOK)
	}
	return cw.body.Write(p)
}

func (cw *captureWriter) readFrom(src io.Reader) (int64, error) {
	if !cw.wrote {
		cw.writeHeader(http.StatusOK)
	}
	return cw.body.ReadFrom(src)
}

func (cw *captureWriter) response() *CapturedResponse {
	return &CapturedResponse{
		StatusCode: cw.status,
		Header:     cw.header,
		Body:       cw.body.Bytes(),
	}
}
