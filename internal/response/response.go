package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// BusinessErrorBody is the body sent for status-coded application faults.
type BusinessErrorBody struct {
	Error string `json:"error"`
}

// FaultBody is the body sent for any other uncaught fault.
type FaultBody struct {
	Code      string `json:"code"`
	ErrorText string `json:"errorText"`
}

// OK sends a 200 response with data.
func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContent sends 204.
func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Detail renders an HTTP error as "<status>: <message>".
func Detail(he *echo.HTTPError) string {
	msg := he.Message
	if msg == nil {
		msg = http.StatusText(he.Code)
	}
	return fmt.Sprintf("%d: %v", he.Code, msg)
}

// BusinessError sends he's status with {"error": "<status>: <message>"}.
func BusinessError(c echo.Context, he *echo.HTTPError) error {
	return c.JSON(he.Code, BusinessErrorBody{Error: Detail(he)})
}

// Fault sends 500 with {"code": "ERROR", "errorText": err.Error()}.
func Fault(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, FaultBody{Code: "ERROR", ErrorText: err.Error()})
}

// Error writes the response matching err's fault kind and returns the status
// that was sent.
func Error(c echo.Context, err error) (int, error) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, BusinessError(c, he)
	}
	return http.StatusInternalServerError, Fault(c, err)
}
