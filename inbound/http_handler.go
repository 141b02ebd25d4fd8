package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
	"github.com/google/uuid"
)

const defaultMaxRequestBodyBytes int64 = 1 << 20 // 1 MiB

// HTTPHandler serves an InboundHandler over HTTP. Every response is JSON.
type HTTPHandler struct {
	Handler         core.InboundHandler
	MaxRequestBytes int64
}

func NewHTTPHandler(handler core.InboundHandler) *HTTPHandler {
	return &HTTPHandler{Handler: handler, MaxRequestBytes: defaultMaxRequestBodyBytes}
}

// disabler is implemented by handlers with a kill switch. A disabled
// handler answers every request before method or body checks run.
type disabler interface {
	IsDisabled() bool
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Handler == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "relay is not configured"})
		return
	}
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", requestID)
	ctx := withRequestID(r.Context(), requestID)
	metadata := map[string]any{"request_id": requestID, "remote_addr": r.RemoteAddr}

	if gate, ok := h.Handler.(disabler); ok && gate.IsDisabled() {
		result, _ := h.Handler.Handle(ctx, core.InboundRequest{
			Surface:  h.Handler.Surface(),
			Metadata: metadata,
		})
		writeResult(w, result)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	limit := h.MaxRequestBytes
	if limit <= 0 {
		limit = defaultMaxRequestBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		rich := readBodyError(err, limit)
		writeJSON(w, rich.Code, map[string]any{"error": publicMessage(rich)})
		return
	}

	result, _ := h.Handler.Handle(ctx, core.InboundRequest{
		Surface:  h.Handler.Surface(),
		Headers:  firstHeaderValues(r.Header),
		Body:     body,
		Metadata: metadata,
	})
	writeResult(w, result)
}

func readBodyError(err error, limit int64) *goerrors.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return inboundWrapError(err, goerrors.CategoryBadInput, "inbound: request body too large",
			http.StatusRequestEntityTooLarge, core.RelayErrorBadInput, map[string]any{"limit": limit})
	}
	return inboundWrapError(err, goerrors.CategoryBadInput, "inbound: unable to read request body",
		http.StatusBadRequest, core.RelayErrorBadInput, nil)
}

func writeResult(w http.ResponseWriter, result core.InboundResult) {
	status := result.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	responseBody := result.Body
	if responseBody == nil {
		responseBody = map[string]any{"error": http.StatusText(status)}
	}
	writeJSON(w, status, responseBody)
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id assigned by HTTPHandler.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func firstHeaderValues(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return flat
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
