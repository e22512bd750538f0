// Package middleware holds the request pipeline shared by every route: the
// fault barrier, request/response interception and APM transactions.
package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uis-platform/uisapi/internal/reqlog"
)

// InterceptConfig configures Intercept.
type InterceptConfig struct {
	Recorder *reqlog.Recorder
	// ExemptPath is matched exactly; its responses are streamed through
	// untouched and never captured.
	ExemptPath string
	Logger     zerolog.Logger
}

// Intercept records every request and response into a per-request buffer and
// flushes it to the request log when the request ends, however it ends.
//
// Outside ExemptPath the handler writes into a capture; once it returns, the
// body is logged and replayed to the client with the same status and headers.
// Errors and panics from the handler are recorded and passed on unchanged.
func Intercept(cfg InterceptConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			req := c.Request()
			res := c.Response()
			buf := reqlog.NewBuffer(requestID(req))

			buf.Infof("Request received: %s %s", req.Method, fullURL(c))
			buf.Infof("Request headers: %s", formatHeaders(req.Header))
			if bodyBearing(req.Method) {
				recordRequestBody(req, buf)
			}
			c.SetRequest(req.WithContext(reqlog.NewContext(req.Context(), buf)))

			original := res.Writer
			var capture *captureWriter
			if req.URL.Path != cfg.ExemptPath {
				var w http.ResponseWriter
				capture, w = newCaptureWriter(original)
				res.Writer = w
			}

			defer func() {
				res.Writer = original
				buf.Infof("Request completed in %.4f seconds", time.Since(start).Seconds())
				if ferr := cfg.Recorder.Flush(buf); ferr != nil {
					cfg.Logger.Error().Err(ferr).Str("path", req.URL.Path).Msg("request log flush failed")
				}
			}()
			defer func() {
				if p := recover(); p != nil {
					buf.Error(fmt.Sprintf("Request failed: %v", p), string(debug.Stack()))
					if capture != nil {
						discardCapture(res, original)
					}
					panic(p)
				}
			}()

			if err = next(c); err != nil {
				buf.Error(fmt.Sprintf("Request failed: %v", err), describeError(err))
				if capture != nil {
					discardCapture(res, original)
				}
				return err
			}

			buf.Infof("Response status: %d", res.Status)
			if capture == nil {
				return nil
			}
			captured := capture.response()
			if capture.wrote {
				buf.Infof("Streaming Response body: %s", captured.Text())
			}
			res.Writer = original
			if rerr := captured.Replay(original); rerr != nil {
				buf.Error(fmt.Sprintf("Error replaying response: %v", rerr), "")
			}
			return nil
		}
	}
}

// discardCapture drops whatever the handler wrote so the barrier can answer
// on a clean response. Nothing captured has reached the client yet.
func discardCapture(res *echo.Response, original http.ResponseWriter) {
	res.Writer = original
	res.Committed = false
	res.Status = http.StatusOK
	res.Size = 0
}

func requestID(req *http.Request) string {
	if id := req.Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

func fullURL(c echo.Context) string {
	req := c.Request()
	return c.Scheme() + "://" + req.Host + req.URL.RequestURI()
}

func bodyBearing(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func formatHeaders(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return fmt.Sprint(flat)
	}
	return string(b)
}

// recordRequestBody reads the body, puts it back for the handler and logs it
// as compact JSON. A body that is not JSON is logged as one error entry.
func recordRequestBody(req *http.Request, buf *reqlog.Buffer) {
	if req.Body == nil {
		buf.Errorf("Error reading request body: %v", io.ErrUnexpectedEOF)
		return
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		// the handler sees the same bytes and then the same failure
		req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), failedReader{err}))
		buf.Errorf("Error reading request body: %v", err)
		return
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		buf.Errorf("Error reading request body: %v", err)
		return
	}
	compact, err := json.Marshal(v)
	if err != nil {
		buf.Errorf("Error reading request body: %v", err)
		return
	}
	buf.Infof("Request body: %s", compact)
}

type failedReader struct{ err error }

func (r failedReader) Read([]byte) (int, error) { return 0, r.err }

// describeError lists the error chain, one "<type>: <message>" per line.
func describeError(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %v\n", e, e)
	}
	return b.String()
}
