package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput           = "RELAY_BAD_INPUT"
	RelayErrorInvalidDecision    = "RELAY_INVALID_DECISION"
	RelayErrorMissingCredential  = "RELAY_MISSING_CREDENTIAL"
	RelayErrorInvalidCredential  = "RELAY_INVALID_CREDENTIAL"
	RelayErrorDisabled           = "RELAY_DISABLED"
	RelayErrorNotConfigured      = "RELAY_NOT_CONFIGURED"
	RelayErrorDownstreamFailed   = "RELAY_DOWNSTREAM_FAILED"
	RelayErrorExternalFailure    = "RELAY_EXTERNAL_FAILURE"
	RelayErrorNotFound           = "RELAY_NOT_FOUND"
	RelayErrorConflict           = "RELAY_CONFLICT"
	RelayErrorOperationFailed    = "RELAY_OPERATION_FAILED"
	RelayErrorInternal           = "RELAY_INTERNAL_ERROR"
)

// MapError converts any error into a relay error envelope.
func MapError(err error) *goerrors.Error {
	return relayErrorMapper(err)
}

func relayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not configured"):
		return newRelayError(err.Error(), goerrors.CategoryInternal, RelayErrorNotConfigured)
	case strings.Contains(msg, "not found"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorNotFound)
	case strings.Contains(msg, "decision"):
		return newRelayError(err.Error(), goerrors.CategoryValidation, RelayErrorInvalidDecision)
	case strings.Contains(msg, "signature"), strings.Contains(msg, "credential"):
		return newRelayError(err.Error(), goerrors.CategoryAuthz, RelayErrorInvalidCredential)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func newRelayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureRelayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = RelayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = RelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

// RelayTextCode is the default text code for an error category.
func RelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorBadInput
	case goerrors.CategoryAuth:
		return RelayErrorMissingCredential
	case goerrors.CategoryAuthz:
		return RelayErrorInvalidCredential
	case goerrors.CategoryNotFound:
		return RelayErrorNotFound
	case goerrors.CategoryConflict:
		return RelayErrorConflict
	case goerrors.CategoryOperation:
		return RelayErrorOperationFailed
	case goerrors.CategoryExternal:
		return RelayErrorExternalFailure
	default:
		return RelayErrorInternal
	}
}

// RelayHTTPStatus is the default HTTP status for an error category.
func RelayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
