// Package inbound runs the relay pipeline for a single request.
//
// Relay.Handle checks the kill switch, authenticates the credential,
// classifies and sanitizes the payload, evaluates any plan delta, and
// forwards the result with exactly one sink call. HTTPHandler adapts the
// pipeline to net/http.
package inbound
