package apperrors

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// Body is the JSON error payload returned by handlers.
type Body struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// ToHTTP converts err into an echo error with a status from HTTPStatus. Only
// the public message of an *Error reaches the client; wrapped causes and
// untyped errors are reported generically.
func ToHTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := HTTPStatus(err)
	var ae *Error
	if !errors.As(err, &ae) {
		return echo.NewHTTPError(status, Body{Error: "internal server error"}).SetInternal(err)
	}
	body := Body{Error: ae.Message, Kind: ae.Kind, Field: ae.Field}
	if ae.Err != nil {
		return echo.NewHTTPError(status, body).SetInternal(ae.Err)
	}
	return echo.NewHTTPError(status, body)
}
