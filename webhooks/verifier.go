package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
)

const (
	HeaderChatSignature = "X-Line-Signature"
	HeaderAuthorization = "Authorization"

	SchemeHMAC   = "hmac"
	SchemeBearer = "bearer"

	hmacPrefix   = "sha256="
	bearerPrefix = "Bearer "
)

// Secrets holds the shared secrets for each verification scheme. An empty
// value disables its scheme.
type Secrets struct {
	ChatSecret string
	APIKey     string
}

func SecretsFromConfig(cfg core.SecretsConfig) Secrets {
	return Secrets{
		ChatSecret: cfg.ChatChannelSecret,
		APIKey:     cfg.ProgressAPIKey,
	}
}

// Verify reports whether credential authenticates rawBody under one of the
// supported schemes:
//
//	sha256=<base64 HMAC-SHA256(ChatSecret, rawBody)>
//	Bearer <APIKey>
//
// Unknown prefixes and unconfigured schemes never verify.
func Verify(rawBody []byte, credential string, secrets Secrets) bool {
	switch Scheme(credential) {
	case SchemeHMAC:
		if secrets.ChatSecret == "" {
			return false
		}
		mac := hmac.New(sha256.New, []byte(secrets.ChatSecret))
		_, _ = mac.Write(rawBody)
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		actual := strings.TrimPrefix(credential, hmacPrefix)
		return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1
	case SchemeBearer:
		if secrets.APIKey == "" {
			return false
		}
		actual := strings.TrimPrefix(credential, bearerPrefix)
		return subtle.ConstantTimeCompare([]byte(actual), []byte(secrets.APIKey)) == 1
	default:
		return false
	}
}

// Scheme returns the verification scheme selected by credential's prefix,
// or "" when the prefix is not recognized.
func Scheme(credential string) string {
	switch {
	case strings.HasPrefix(credential, hmacPrefix):
		return SchemeHMAC
	case strings.HasPrefix(credential, bearerPrefix):
		return SchemeBearer
	default:
		return ""
	}
}

// ExtractCredential returns the chat signature header when present and the
// Authorization header otherwise.
func ExtractCredential(headers map[string]string) string {
	if value := headerValue(headers, HeaderChatSignature); value != "" {
		return value
	}
	return headerValue(headers, HeaderAuthorization)
}

// SchemeVerifier checks inbound requests against Secrets.
type SchemeVerifier struct {
	Secrets Secrets
}

func (v SchemeVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	credential := ExtractCredential(req.Headers)
	if credential == "" {
		return goerrors.New("webhooks: credential is required", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.RelayErrorMissingCredential)
	}
	if !Verify(req.Body, credential, v.Secrets) {
		return goerrors.New("webhooks: invalid signature", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode(core.RelayErrorInvalidCredential).
			WithMetadata(map[string]any{"scheme": Scheme(credential)})
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
