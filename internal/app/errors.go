package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/sdk/middleware"
	"github.com/nourabuild/user-directory/internal/sdk/validate"
	"github.com/nourabuild/user-directory/internal/services/sentry"
	"github.com/nourabuild/user-directory/internal/services/users"
)

const (
	ErrUnmarshal         = "invalid_request_body"
	ErrInvalidUserID     = "invalid_user_id"
	ErrInvalidPage       = "invalid_page"
	ErrInvalidMode       = "invalid_display_mode"
	ErrPhoneTaken        = "phone_number_already_registered"
	ErrUserNotFound      = "user_not_found"
	ErrRetrieveUsers     = "internal_retrieve_users_error"
	ErrCreateUser        = "internal_create_user_error"
	ErrUpdateUser        = "internal_update_user_error"
	ErrDeleteUser        = "internal_delete_user_error"
	ErrSessionBusy       = "submission_in_progress"
	ErrServiceNotHealthy = "service_unavailable"
)

var errorStatusMap = map[string]int{
	ErrUnmarshal:         http.StatusBadRequest,
	ErrInvalidUserID:     http.StatusBadRequest,
	ErrInvalidPage:       http.StatusBadRequest,
	ErrInvalidMode:       http.StatusBadRequest,
	ErrPhoneTaken:        http.StatusConflict,
	ErrUserNotFound:      http.StatusNotFound,
	ErrRetrieveUsers:     http.StatusInternalServerError,
	ErrCreateUser:        http.StatusInternalServerError,
	ErrUpdateUser:        http.StatusInternalServerError,
	ErrDeleteUser:        http.StatusInternalServerError,
	ErrSessionBusy:       http.StatusConflict,
	ErrServiceNotHealthy: http.StatusServiceUnavailable,

	validate.ErrMissingFields:        http.StatusBadRequest,
	validate.ErrInvalidBirthday:      http.StatusBadRequest,
	validate.ErrInvalidGender:        http.StatusBadRequest,
	validate.ErrInvalidOccupation:    http.StatusBadRequest,
	validate.ErrInvalidPhone:         http.StatusBadRequest,
	validate.ErrAvatarTooLarge:       http.StatusRequestEntityTooLarge,
	validate.ErrAvatarType:           http.StatusUnsupportedMediaType,
	validate.ErrConfirmationMismatch: http.StatusBadRequest,
}

func statusForError(code string) int {
	if status, ok := errorStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, code string, details map[string]string) {
	c.JSON(statusForError(code), ErrorResponse{Error: code, Details: details})
}

// userError maps a users.Service failure to an error code. internalCode is
// used for generic remote failures, which are also reported.
func (a *App) userError(c *gin.Context, handler string, err error, internalCode string) (string, map[string]string) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		return verr.Code, verr.Details
	case errors.Is(err, users.ErrPhoneTaken):
		return ErrPhoneTaken, map[string]string{"phone_number": "phone_number_taken"}
	case errors.Is(err, users.ErrNotFound):
		return ErrUserNotFound, nil
	default:
		a.toSentry(c, handler, "remote", sentry.LevelError, err)
		return internalCode, nil
	}
}

func (a *App) toSentry(c *gin.Context, handler, errType string, level sentry.Level, err error) {
	a.sentry.Report(sentry.Event{
		Operation: handler,
		Stage:     errType,
		RequestID: middleware.GetRequestID(c),
		Level:     level,
	}, err)
}
