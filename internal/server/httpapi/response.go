// Package httpapi is the HTTP boundary of the server: the JSON envelope,
// the page and API handlers and the router that wires them to pipelines.
package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/dmitrijs2005/vipkeeper/internal/logging"
)

// Envelope messages.
const (
	MsgSuccess          = "success"
	MsgBadCredentials   = "Account not exist or password is incorrect."
	MsgUnauthorized     = "Unauthorized"
	MsgValidationFailed = "Validation failed"
	MsgNotFound         = "Not found"
	MsgEmailTaken       = "Email already registered"
	MsgTooManyAttempts  = "Too many login attempts, try again later."
	MsgMethodNotAllowed = "Method not allowed"
	MsgBadRequest       = "Malformed request body"
	MsgInternal         = "Internal server error"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

type fieldsData struct {
	Fields map[string]string `json:"fields"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Code: http.StatusOK, Msg: MsgSuccess, Data: data})
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Code: status, Msg: msg})
}

// errBadBody marks request bodies that could not be decoded at all.
var errBadBody = errors.New("malformed request body")

// writeError maps err onto the error table. Anything unknown is an
// internal failure: its cause is logged and the client gets a generic body.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	if ve, ok := common.IsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, Response{
			Code: http.StatusBadRequest,
			Msg:  MsgValidationFailed,
			Data: fieldsData{Fields: ve.Fields},
		})
		return
	}

	var locked *lockedError
	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(locked.retryAfter)))
		writeStatus(w, http.StatusTooManyRequests, MsgTooManyAttempts)
	case errors.Is(err, errBadBody):
		writeStatus(w, http.StatusBadRequest, MsgBadRequest)
	case errors.Is(err, common.ErrorUnauthorized):
		writeStatus(w, http.StatusUnauthorized, MsgBadCredentials)
	case errors.Is(err, common.ErrorNotFound):
		writeStatus(w, http.StatusNotFound, MsgNotFound)
	case errors.Is(err, common.ErrorAlreadyExists):
		writeStatus(w, http.StatusConflict, MsgEmailTaken)
	default:
		logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeStatus(w, http.StatusInternalServerError, MsgInternal)
	}
}

// lockedError carries the remaining lockout of a throttled client.
type lockedError struct {
	retryAfter time.Duration
}

func (e *lockedError) Error() string { return common.ErrorTooManyAttempts.Error() }
func (e *lockedError) Unwrap() error { return common.ErrorTooManyAttempts }

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
