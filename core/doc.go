// Package core holds the relay's configuration, contracts, error envelopes
// and the Service runtime that forwards sanitized events downstream and
// records their outcome. Verification, classification and decision logic
// live in their own packages; core must not depend on them.
package core
