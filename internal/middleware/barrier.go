package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uis-platform/uisapi/internal/metrics"
	"github.com/uis-platform/uisapi/internal/response"
)

// FaultBarrier is the outermost middleware. Every error or panic from the
// chain becomes a JSON response: *echo.HTTPError keeps its status with
// {"error": "<status>: <message>"}, anything else is a 500 with
// {"code": "ERROR", "errorText": "<message>"}. It always returns nil, so echo's
// own error handler never runs.
func FaultBarrier(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			status := 0
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					status = handleFault(c, log, panicError(p))
				}
				if status == 0 {
					status = c.Response().Status
				}
				metrics.ObserveRequest(c.Request().Method, status, time.Since(start))
			}()

			if err := next(c); err != nil {
				status = handleFault(c, log, err)
			}
			return nil
		}
	}
}

func handleFault(c echo.Context, log zerolog.Logger, err error) int {
	req := c.Request()
	res := c.Response()
	if res.Committed {
		log.Error().Err(err).Str("method", req.Method).Str("path", req.URL.Path).
			Msg("fault after response was committed")
		return res.Status
	}
	status, werr := response.Error(c, err)
	if werr != nil {
		log.Error().Err(werr).Str("path", req.URL.Path).Msg("write fault response")
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("unhandled fault")
	}
	return status
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}
