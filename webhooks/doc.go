// Package webhooks authenticates inbound relay requests.
//
// Two schemes are recognized by credential prefix: "sha256=" carries a
// base64 HMAC-SHA256 of the raw body keyed by the chat channel secret, and
// "Bearer " carries the progress source API key. A scheme whose secret is
// not configured fails closed.
package webhooks
