// Package auth decides whether a received message comes from a configured
// client.
//
// Secrets are stored as hex SHA-256 digests; only the received secret is
// hashed at check time.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/danmuck/rorilink/internal/protocol"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// AuthorizedClient is one configured principal.
type AuthorizedClient struct {
	Name       string
	SecretHash string
}

// HashSecret returns the lowercase hex SHA-256 digest of secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IsAuthorized scans authorized in order and reports the first entry whose
// name and digest both match, ignoring case.
func IsAuthorized(msg protocol.Message, authorized []AuthorizedClient) bool {
	digest := HashSecret(msg.Secret)
	for _, client := range authorized {
		if strings.EqualFold(client.Name, msg.Client) && strings.EqualFold(client.SecretHash, digest) {
			return true
		}
	}
	return false
}

// Validator admits or denies a received message.
type Validator interface {
	Validate(msg protocol.Message) error
}

// ClientList validates against a fixed list of authorized clients.
type ClientList []AuthorizedClient

func (l ClientList) Validate(msg protocol.Message) error {
	if !IsAuthorized(msg, l) {
		return ErrUnauthorized
	}
	return nil
}

// AllowAll admits every message. Used when no clients are configured.
type AllowAll struct{}

func (AllowAll) Validate(protocol.Message) error {
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(msg protocol.Message) error

func (f FuncValidator) Validate(msg protocol.Message) error {
	return f(msg)
}

// ForClients returns a ClientList for a non-empty list and AllowAll
// otherwise.
func ForClients(authorized []AuthorizedClient) Validator {
	if len(authorized) == 0 {
		return AllowAll{}
	}
	out := make(ClientList, len(authorized))
	copy(out, authorized)
	return out
}
