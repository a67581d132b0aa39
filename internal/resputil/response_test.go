package resputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loomspace/pkg/apperr"
)

func record(fn func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]any) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestSuccessEnvelope(t *testing.T) {
	w, body := record(func(c *gin.Context) {
		Success(c, gin.H{"id": 7})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, OK, body["code"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, data["id"])
}

func TestWorkflowErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{apperr.ErrNotFound, http.StatusNotFound, ResourceNotFound},
		{apperr.ErrForbidden, http.StatusForbidden, UserNotAllowed},
		{apperr.ErrConflict, http.StatusConflict, ResourceConflict},
		{apperr.ErrExpired, http.StatusGone, InvitationExpired},
		{apperr.ErrValidation, http.StatusBadRequest, InvalidRequest},
		{apperr.ErrNotReady, http.StatusFailedDependency, DependencyNotReady},
		{apperr.ErrStorage, http.StatusInternalServerError, StorageFailure},
		{apperr.ErrUpstream, http.StatusInternalServerError, UpstreamFailure},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("some context: %w", tc.err)
		w, body := record(func(c *gin.Context) {
			WorkflowError(c, wrapped)
		})
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.EqualValues(t, tc.code, body["code"], tc.err.Error())
		assert.Contains(t, body["msg"], "some context")
	}
}

func TestWorkflowErrorUnknownFallsBack(t *testing.T) {
	w, body := record(func(c *gin.Context) {
		WorkflowError(c, fmt.Errorf("driver: bad connection"))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, NotSpecified, body["code"])
}
