package resputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/pkg/apperr"
)

// Response is the envelope of every endpoint, generic only for documentation
// purposes.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func wrapResponse(c *gin.Context, httpCode int, msg string, data any, code ErrorCode) {
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data any) {
	wrapResponse(c, http.StatusOK, "", data, OK)
}

// SuccessWithStatus is Success with a non-200 status, used by batch endpoints
// that report partial completion as 207.
func SuccessWithStatus(c *gin.Context, httpCode int, data any) {
	wrapResponse(c, httpCode, "", data, OK)
}

func Error(c *gin.Context, msg string, errorCode ErrorCode) {
	wrapResponse(c, http.StatusInternalServerError, msg, nil, errorCode)
}

func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	wrapResponse(c, httpCode, msg, nil, errorCode)
}

func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

// WorkflowError maps a workflow error onto HTTP status and error code by its
// apperr sentinel. Validation and authorization failures never carry data.
func WorkflowError(c *gin.Context, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		HTTPError(c, http.StatusNotFound, msg, ResourceNotFound)
	case errors.Is(err, apperr.ErrForbidden):
		HTTPError(c, http.StatusForbidden, msg, UserNotAllowed)
	case errors.Is(err, apperr.ErrConflict):
		HTTPError(c, http.StatusConflict, msg, ResourceConflict)
	case errors.Is(err, apperr.ErrExpired):
		HTTPError(c, http.StatusGone, msg, InvitationExpired)
	case errors.Is(err, apperr.ErrValidation):
		HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
	case errors.Is(err, apperr.ErrNotReady):
		HTTPError(c, http.StatusFailedDependency, msg, DependencyNotReady)
	case errors.Is(err, apperr.ErrStorage):
		HTTPError(c, http.StatusInternalServerError, msg, StorageFailure)
	case errors.Is(err, apperr.ErrUpstream):
		HTTPError(c, http.StatusInternalServerError, msg, UpstreamFailure)
	default:
		Error(c, msg, NotSpecified)
	}
}
