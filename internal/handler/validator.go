package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo. Failures are 422
// business faults.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
	}
	return nil
}

// unprocessable turns binder and decoder failures into 422s, keeping the
// message echo already attached.
func unprocessable(err error) error {
	msg := any(err.Error())
	var be *echo.BindingError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &be):
		msg = fmt.Sprintf("%s: %v", be.Field, be.Message)
	case errors.As(err, &he):
		msg = he.Message
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, msg).SetInternal(err)
}

// requiredIntQuery reads an integer query parameter that must be present.
func requiredIntQuery(c echo.Context, name string, dst *int) error {
	if err := echo.QueryParamsBinder(c).MustInt(name, dst).BindError(); err != nil {
		return unprocessable(err)
	}
	return nil
}

// bindJSON decodes the request body as JSON whatever its content type. An
// oversized body keeps its 413.
func bindJSON(c echo.Context, dst any) error {
	err := c.Echo().JSONSerializer.Deserialize(c, dst)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
		return err
	}
	return unprocessable(err)
}
