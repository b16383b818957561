package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var he *echo.HTTPError
	var ue *shell.UsageError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, vfs.ErrProjectNotFound),
		errors.Is(err, vfs.ErrFileNotFound),
		errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, vfs.ErrEmptyProjectName),
		errors.Is(err, vfs.ErrUnknownTemplate),
		errors.Is(err, vfs.ErrInvalidPath),
		errors.Is(err, vfs.ErrEmptyPackageName),
		errors.As(err, &ue):
		return http.StatusBadRequest
	case errors.Is(err, vfs.ErrMalformedManifest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vfs.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			zap.String("route", c.Path()),
			zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Warn(c.Request().Context(), "writing error response", zap.Error(err))
	}
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
