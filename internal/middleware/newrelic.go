package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelic starts one transaction per request and puts it on the request
// context so database segments attach to it. A nil app disables it.
func NewRelic(app *newrelic.Application) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if app == nil {
			return next
		}
		return func(c echo.Context) error {
			req := c.Request()
			txn := app.StartTransaction(req.Method + " " + c.Path())
			defer txn.End()
			txn.SetWebRequestHTTP(req)

			res := c.Response()
			original := res.Writer
			res.Writer = txn.SetWebResponse(original)
			defer func() { res.Writer = original }()

			c.SetRequest(req.WithContext(newrelic.NewContext(req.Context(), txn)))
			err := next(c)
			if err != nil {
				txn.NoticeError(err)
				// the barrier answers after this transaction has ended
				txn.SetWebResponse(nil).WriteHeader(faultStatus(err))
			}
			return err
		}
	}
}

// faultStatus is the status FaultBarrier will send for err.
func faultStatus(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
