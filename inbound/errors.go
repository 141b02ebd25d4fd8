package inbound

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return inboundError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundDisabled() *goerrors.Error {
	return inboundError(
		"relay is disabled",
		goerrors.CategoryOperation,
		http.StatusServiceUnavailable,
		core.RelayErrorDisabled,
		nil,
	)
}

// asBoundaryError returns err as an envelope with an HTTP status, falling
// back to fallbackStatus when the envelope does not carry one.
func asBoundaryError(err error, fallbackStatus int) *goerrors.Error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		rich = core.MapError(err)
	}
	if rich.Code == 0 {
		rich.Code = fallbackStatus
	}
	return rich
}

// publicMessage strips the package prefix from an error message.
func publicMessage(err *goerrors.Error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Message)
	if prefix, rest, ok := strings.Cut(message, ": "); ok && !strings.ContainsAny(prefix, " \t") {
		message = rest
	}
	if message == "" {
		return http.StatusText(err.Code)
	}
	return message
}
