// Package transport carries sanitized relay events to the downstream
// workflow sink over HTTP.
package transport
