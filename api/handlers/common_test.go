package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/types"
)

func TestWriteErrorTypedMapping(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrSessionNotFound, http.StatusNotFound},
		{types.ErrSessionCompleted, http.StatusConflict},
		{types.ErrRateLimitExceeded, http.StatusTooManyRequests},
		{types.ErrRateLimiterUnavailable, http.StatusServiceUnavailable},
		{types.ErrExecutorFatal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(rec, types.NewError(tt.code, "nope"), zap.NewNop())
		assert.Equal(t, tt.want, rec.Code, string(tt.code))

		var resp Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, string(tt.code), resp.Error.Code)
	}
}

func TestWriteErrorUntypedHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("secret internal detail"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "secret")
}

func TestWriteErrorRespectsExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, types.NewError(types.ErrInvalidRequest, "nope").
		WithHTTPStatus(http.StatusUnprocessableEntity), zap.NewNop())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusTeapot, rw.StatusCode, "only the first status sticks")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponseWriterDefaultsTo200OnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, err := rw.Write([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"k": "v"})

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Timestamp.IsZero())
}
