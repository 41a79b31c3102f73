package server

import (
	"errors"
	"net/http"

	"poolledger/native/lending"
	"poolledger/native/vault"
	"poolledger/services/lending/engine"
)

// statusFor maps engine failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrClosed), errors.Is(err, lending.ErrNotInitialised):
		return http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrAlreadyInitialised):
		return http.StatusConflict
	case errors.Is(err, vault.ErrInsufficientStake):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrSelfTransfer):
		return http.StatusBadRequest
	}
	switch engine.Outcome(err) {
	case "cancelled":
		return http.StatusRequestTimeout
	case "authorization":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "pool_state", "timing", "consistency", "reentrant":
		return http.StatusConflict
	case "paused":
		return http.StatusServiceUnavailable
	case "capacity", "funds":
		return http.StatusUnprocessableEntity
	case "amount", "configuration", "invalid_amount":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the stable machine-readable label returned alongside the
// message.
func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, engine.ErrClosed):
		return "closed"
	case errors.Is(err, lending.ErrNotInitialised):
		return "not_initialised"
	case errors.Is(err, lending.ErrAlreadyInitialised):
		return "already_initialised"
	case errors.Is(err, vault.ErrInsufficientStake):
		return "funds"
	case errors.Is(err, vault.ErrSelfTransfer):
		return "self_transfer"
	}
	return engine.Outcome(err)
}
