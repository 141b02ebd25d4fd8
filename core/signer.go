package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type BearerTokenSigner struct{}

func (BearerTokenSigner) Sign(_ context.Context, req *http.Request, cred Credential) error {
	if req == nil {
		return fmt.Errorf("core: http request is required")
	}
	token := strings.TrimSpace(cred.Token)
	if token == "" {
		return fmt.Errorf("core: access token is required for bearer signing")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// SignHeaders applies signer to a throwaway request and returns the
// resulting headers, for adapters that build requests from header maps.
func SignHeaders(ctx context.Context, signer Signer, cred Credential) (map[string]string, error) {
	if signer == nil {
		return nil, fmt.Errorf("core: signer is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://relay.invalid/", nil)
	if err != nil {
		return nil, err
	}
	if err := signer.Sign(ctx, req, cred); err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(req.Header))
	for key := range req.Header {
		headers[key] = req.Header.Get(key)
	}
	return headers, nil
}
