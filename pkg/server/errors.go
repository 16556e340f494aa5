package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode"
	"unicode/utf8"

	"homenas/pkg/log"
	"homenas/pkg/store"

	"github.com/labstack/echo/v4"
)

const internalErrorMessage = "Internal server error"

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error      bool   `json:"error"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

func errorJSON(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, errorResponse{
		Error:      true,
		StatusCode: status,
		Message:    message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// sentence upper-cases the first letter of an error message.
func sentence(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// statusFor maps store errors to a status code and client message. subject names
// the missing or conflicting thing, e.g. "File" or "Directory".
func statusFor(err error, subject string) (int, string, bool) {
	var (
		accessDenied     store.AccessDeniedError
		notFound         store.NotFoundError
		notADirectory    store.NotADirectoryError
		notAFile         store.NotAFileError
		alreadyExists    store.AlreadyExistsError
		notEmpty         store.NotEmptyError
		invalidName      store.InvalidNameError
		typeNotAllowed   store.TypeNotAllowedError
		tooLarge         store.TooLargeError
		permissionDenied store.PermissionDeniedError
	)

	switch {
	case errors.As(err, &accessDenied):
		return http.StatusForbidden, "Access denied: invalid path", true
	case errors.As(err, &notFound):
		return http.StatusNotFound, subject + " not found", true
	case errors.As(err, &notADirectory):
		return http.StatusBadRequest, "Path is not a directory", true
	case errors.As(err, &notAFile):
		return http.StatusBadRequest, "Path is not a file", true
	case errors.As(err, &alreadyExists):
		return http.StatusConflict, subject + " already exists", true
	case errors.As(err, &notEmpty):
		return http.StatusConflict, "Folder is not empty. Use force=true to delete non-empty folders", true
	case errors.As(err, &invalidName):
		return http.StatusBadRequest, fmt.Sprintf("Invalid name %q", invalidName.Name), true
	case errors.As(err, &typeNotAllowed):
		return http.StatusBadRequest, sentence(typeNotAllowed.Error()), true
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, sentence(tooLarge.Error()), true
	case errors.As(err, &permissionDenied):
		return http.StatusForbidden, "Permission denied", true
	}
	return 0, "", false
}

// storeError writes the response for a failed store or resolver call. Unknown
// errors are logged with the route and relative target and hidden from clients.
func storeError(ctx echo.Context, err error, subject, target string) error {
	status, message, ok := statusFor(err, subject)
	if ok {
		event := log.Info()
		if status == http.StatusForbidden {
			event = log.Warn()
		}
		event.Err(err).
			Str("route", ctx.Path()).
			Str("path", target).
			Int("status", status).
			Msg("Request rejected")
		return errorJSON(ctx, status, message)
	}

	log.Error().Err(err).
		Str("route", ctx.Path()).
		Str("path", target).
		Msg("Request failed")
	return errorJSON(ctx, http.StatusInternalServerError, internalErrorMessage)
}

// handleHTTPError renders echo's own errors (404, 405, 401, 429, recovered
// panics) with the same envelope as handler errors.
func (s *NASServer) handleHTTPError(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := internalErrorMessage

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		switch m := httpErr.Message.(type) {
		case string:
			message = m
		case nil:
			message = http.StatusText(status)
		default:
			message = fmt.Sprint(m)
		}
	} else {
		log.Error().Err(err).
			Str("method", ctx.Request().Method).
			Str("uri", ctx.Request().URL.Path).
			Msg("Unhandled exception")
	}

	var writeErr error
	if ctx.Request().Method == http.MethodHead {
		writeErr = ctx.NoContent(status)
	} else {
		writeErr = errorJSON(ctx, status, sentence(message))
	}
	if writeErr != nil {
		log.Error().Err(writeErr).Msg("Failed to write error response")
	}
}
