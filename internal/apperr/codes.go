// Package apperr provides the error taxonomy shared by the table, ledger and vault.
//
// Every rejection carries a Kind so callers can tell "fix your input" apart from
// "try a smaller amount" or "try later", and a Code for machine-readable handling.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind groups codes by how a caller should react.
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindProtocol      Kind = "PROTOCOL"
	KindResource      Kind = "RESOURCE"
	KindAuthorization Kind = "AUTHORIZATION"
	KindConsistency   Kind = "CONSISTENCY"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Game protocol
	CodeSeriesActive    Code = "SERIES_ACTIVE"
	CodeNoActiveSeries  Code = "NO_ACTIVE_SERIES"
	CodeRollPending     Code = "ROLL_PENDING"
	CodeInvalidBetType  Code = "INVALID_BET_TYPE"
	CodeBetNotAllowed   Code = "BET_NOT_ALLOWED_IN_PHASE"
	CodeDuplicateBet    Code = "DUPLICATE_BET"
	CodeBetNotFound     Code = "BET_NOT_FOUND"
	CodeBetNotRemovable Code = "BET_NOT_REMOVABLE"
	CodeInvalidTarget   Code = "INVALID_TARGET"
	CodeMissingBaseBet  Code = "MISSING_BASE_BET"

	// Resources
	CodeAmountOutOfRange      Code = "AMOUNT_OUT_OF_RANGE"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeExceedsUnlocked       Code = "EXCEEDS_UNLOCKED"
	CodeInsufficientShares    Code = "INSUFFICIENT_SHARES"
	CodeZeroAmount            Code = "ZERO_AMOUNT"

	// Authorization
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Consistency
	CodeUnknownRequest  Code = "UNKNOWN_REQUEST"
	CodeSeriesComplete  Code = "SERIES_COMPLETE"
	CodeInvalidRoll     Code = "INVALID_ROLL"
	CodeLockNotFound    Code = "LOCK_NOT_FOUND"
	CodeLockSettled     Code = "LOCK_ALREADY_SETTLED"
	CodeVaultInsolvent  Code = "VAULT_INSOLVENT"
	CodeSettlementStall Code = "SETTLEMENT_STALLED"
)

// Kind returns the kind a code belongs to.
func (c Code) Kind() Kind {
	switch c {
	case CodeSeriesActive,
		CodeNoActiveSeries,
		CodeRollPending,
		CodeInvalidBetType,
		CodeBetNotAllowed,
		CodeDuplicateBet,
		CodeBetNotFound,
		CodeBetNotRemovable,
		CodeInvalidTarget,
		CodeMissingBaseBet:
		return KindProtocol

	case CodeAmountOutOfRange,
		CodeInsufficientLiquidity,
		CodeInsufficientBalance,
		CodeExceedsUnlocked,
		CodeInsufficientShares,
		CodeZeroAmount:
		return KindResource

	case CodeUnauthorized:
		return KindAuthorization

	case CodeUnknownRequest,
		CodeSeriesComplete,
		CodeInvalidRoll,
		CodeLockNotFound,
		CodeLockSettled,
		CodeVaultInsolvent,
		CodeSettlementStall:
		return KindConsistency

	default:
		return KindUnknown
	}
}

// HTTPStatus maps a code to the status the HTTP layer answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBetNotFound:
		return fiber.StatusNotFound
	case CodeUnauthorized:
		return fiber.StatusForbidden
	}

	switch c.Kind() {
	case KindProtocol:
		return fiber.StatusConflict
	case KindResource:
		return fiber.StatusUnprocessableEntity
	case KindConsistency:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Error is a domain error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error carrying the same code, so sentinels compare by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// GetCode extracts the code from any error, CodeUnknown if it is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf returns the kind of err.
func KindOf(err error) Kind {
	return GetCode(err).Kind()
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	return GetCode(err).HTTPStatus()
}
