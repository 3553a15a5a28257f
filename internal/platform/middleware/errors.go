package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trialscore/trialscore/internal/platform/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// statusOf maps an error returned by a handler to its HTTP status.
func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.KindOf(err).Status()
}

// detailOf returns the client-safe message for err. Internal errors never
// expose their cause.
func detailOf(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Kind == apperr.KindInternal {
			return "Internal server error"
		}
		return ae.Detail
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError && he.Code != http.StatusGatewayTimeout {
			return http.StatusText(he.Code)
		}
		if msg, ok := he.Message.(string); ok && msg != "" {
			return msg
		}
		if he.Message != nil {
			return fmt.Sprint(he.Message)
		}
		return http.StatusText(he.Code)
	}
	return "Internal server error"
}

// ErrorHandler renders handler errors as {"detail": "..."} and logs server
// failures with their cause.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorBody{Detail: detailOf(err)})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}
