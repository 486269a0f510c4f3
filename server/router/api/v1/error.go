package v1

import (
	stderrors "errors"
	"log/slog"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	"github.com/hrygo/bookcircle/server/internal/observability"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details map[string]any      `json:"details,omitempty"`
}

// writeError converts err to a JSON response. Internal failures are logged and hidden.
func writeError(c echo.Context, err error) error {
	code := apierrors.GetCodeFromError(err, apierrors.ErrCodeInternal)
	resp := ErrorResponse{Code: code, Message: "internal error"}

	var apiErr *apierrors.APIError
	if code != apierrors.ErrCodeInternal {
		if stderrors.As(err, &apiErr) {
			resp.Message = apiErr.Message
			resp.Details = apiErr.Details
		} else {
			resp.Message = err.Error()
		}
	} else {
		observability.LoggerFromContext(c.Request().Context()).Error("request failed",
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return c.JSON(code.HTTPStatus(), resp)
}
