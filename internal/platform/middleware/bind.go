package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trialscore/trialscore/internal/platform/apperr"
)

// Bind decodes the request into dst and runs the echo validator when one is
// installed.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return BindError(err)
	}
	if c.Echo().Validator != nil {
		return c.Validate(dst)
	}
	return nil
}

// BindError maps a c.Bind failure to the response error. Transport
// rejections such as 413 and 415 keep their status; anything echo reports as
// a 400 is a malformed body and becomes a 422.
func BindError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		var he *echo.HTTPError
		if !errors.As(e, &he) {
			break
		}
		if he.Code != http.StatusBadRequest {
			return he
		}
		e = he
	}
	return apperr.Validation("invalid request body")
}
