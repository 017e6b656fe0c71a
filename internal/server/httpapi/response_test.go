package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"unauthorized", fmt.Errorf("%w: no such user", common.ErrorUnauthorized), http.StatusUnauthorized,
			`{"code":401,"msg":"Account not exist or password is incorrect.","data":null}`},
		{"not found", fmt.Errorf("get user: %w", common.ErrorNotFound), http.StatusNotFound,
			`{"code":404,"msg":"Not found","data":null}`},
		{"conflict", common.ErrorAlreadyExists, http.StatusConflict,
			`{"code":409,"msg":"Email already registered","data":null}`},
		{"validation", common.NewValidationError("email", "is required"), http.StatusBadRequest,
			`{"code":400,"msg":"Validation failed","data":{"fields":{"email":"is required"}}}`},
		{"bad body", fmt.Errorf("%w: eof", errBadBody), http.StatusBadRequest,
			`{"code":400,"msg":"Malformed request body","data":null}`},
		{"internal", fmt.Errorf("%w: db: %w", common.ErrorInternal, errors.New("connection refused")), http.StatusInternalServerError,
			`{"code":500,"msg":"Internal server error","data":null}`},
		{"unknown", errors.New("something else"), http.StatusInternalServerError,
			`{"code":500,"msg":"Internal server error","data":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logging.Nop(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			// причина внутренней ошибки наружу не попадает
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestWriteError_Locked(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &lockedError{retryAfter: 1500 * time.Millisecond}
	writeError(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil), logging.Nop(), err)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.ErrorIs(t, err, common.ErrorTooManyAttempts)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 600, retryAfterSeconds(10*time.Minute))
}

func TestPageView(t *testing.T) {
	p := pageView{Total: 21, CurrentPage: 2, PageSize: 10}
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	p.CurrentPage = 3
	assert.False(t, p.HasNext())
	assert.Equal(t, 0, pageView{}.TotalPages())
}
