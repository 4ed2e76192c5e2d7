package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hikari/taskboard/internal/domain"
)

// errorResponse is the flat error body every failure returns.
type errorResponse struct {
	Error string `json:"error"`
}

// HTTPErrorHandler is the global error handler for echo. Domain errors are
// mapped to status codes and reason strings exactly once, here; anything
// unrecognized is logged and reduced to a generic 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message := mapError(err)
	if jsonErr := c.JSON(status, errorResponse{Error: message}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}

func mapError(err error) (int, string) {
	// echo's own HTTP errors (404 on unknown routes, 405, etc.)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, msg
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrNoCredential):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrMalformedCredential):
		return http.StatusUnauthorized, "Malformed token"
	case errors.Is(err, domain.ErrExpiredCredential):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "Task not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Account already exists"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request body"
	default:
		slog.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, "Internal server error"
	}
}
