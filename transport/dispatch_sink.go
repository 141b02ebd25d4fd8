package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
)

const (
	dispatchAccept         = "application/vnd.github+json"
	dispatchErrorBodyLimit = 512
)

const dispatchResponseLimit int64 = 64 << 10

// RepositoryDispatchSink forwards relay events as repository dispatch
// events: POST {base_url}/repos/{owner}/{repo}/dispatches.
type RepositoryDispatchSink struct {
	Transport core.TransportAdapter
	Signer    core.Signer
	Config    core.DispatchConfig
}

func NewRepositoryDispatchSink(cfg core.DispatchConfig, adapter core.TransportAdapter) *RepositoryDispatchSink {
	if adapter == nil {
		adapter = NewRESTAdapter(nil)
	}
	return &RepositoryDispatchSink{
		Transport: adapter,
		Signer:    core.BearerTokenSigner{},
		Config:    cfg,
	}
}

// Endpoint returns the dispatches URL for the configured repository.
func (s *RepositoryDispatchSink) Endpoint() string {
	base := strings.TrimRight(strings.TrimSpace(s.Config.BaseURL), "/")
	if base == "" {
		base = core.DefaultDispatchBaseURL
	}
	return fmt.Sprintf("%s/repos/%s/%s/dispatches",
		base,
		url.PathEscape(strings.TrimSpace(s.Config.Owner)),
		url.PathEscape(strings.TrimSpace(s.Config.Repo)),
	)
}

// Dispatch makes exactly one call. A non-2xx answer is an external error
// whose metadata carries the downstream status_code.
func (s *RepositoryDispatchSink) Dispatch(ctx context.Context, event core.DispatchEvent) error {
	if s == nil || s.Transport == nil {
		return transportError(
			"transport: dispatch transport is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if !s.Config.Configured() {
		return goerrors.New("transport: dispatch target is not configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.RelayErrorNotConfigured)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: encode dispatch event",
			http.StatusBadRequest,
			map[string]any{"event_type": event.EventType},
		)
	}

	signer := s.Signer
	if signer == nil {
		signer = core.BearerTokenSigner{}
	}
	headers, err := core.SignHeaders(ctx, signer, core.Credential{Token: s.Config.Token, TokenType: "bearer"})
	if err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: sign dispatch request",
			http.StatusInternalServerError,
			nil,
		)
	}
	headers["Accept"] = dispatchAccept
	headers[headerContentType] = contentTypeJSON

	res, err := s.Transport.Do(ctx, core.TransportRequest{
		Method:               http.MethodPost,
		URL:                  s.Endpoint(),
		Headers:              headers,
		Body:                 body,
		Timeout:              s.Config.Timeout,
		MaxResponseBodyBytes: dispatchResponseLimit,
		Metadata:             map[string]any{"event_type": event.EventType},
	})
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return goerrors.New(fmt.Sprintf("dispatch failed: %d", res.StatusCode), goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.RelayErrorDownstreamFailed).
			WithMetadata(map[string]any{
				"status_code":     res.StatusCode,
				"event_type":      event.EventType,
				"downstream_body": truncate(string(res.Body), dispatchErrorBodyLimit),
			})
	}
	return nil
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

var _ core.DispatchSink = (*RepositoryDispatchSink)(nil)
