package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/goliatone/go-relay/core"
)

// Pseudonymizer derives stable, non-reversible correlation tokens from user
// identifiers. With a Key the digest is an HMAC, so tokens cannot be
// recomputed from a guessed identifier without the key.
type Pseudonymizer struct {
	Key    string
	Length int
}

func NewPseudonymizer(cfg core.PseudonymConfig) Pseudonymizer {
	return Pseudonymizer{Key: cfg.Key, Length: cfg.Length}
}

// Derive returns the hex token for userID, or "" for an empty identifier.
func (p Pseudonymizer) Derive(userID string) string {
	if userID == "" {
		return ""
	}
	var sum []byte
	if p.Key != "" {
		mac := hmac.New(sha256.New, []byte(p.Key))
		_, _ = mac.Write([]byte(userID))
		sum = mac.Sum(nil)
	} else {
		digest := sha256.Sum256([]byte(userID))
		sum = digest[:]
	}
	token := hex.EncodeToString(sum)
	return token[:p.length()]
}

func (p Pseudonymizer) length() int {
	switch {
	case p.Length <= 0:
		return core.DefaultPseudonymLength
	case p.Length > core.MaxPseudonymLength:
		return core.MaxPseudonymLength
	default:
		return p.Length
	}
}
