package endpoint

import (
	"context"

	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/danmuck/rorilink/internal/transport"
	"github.com/rs/zerolog/log"
)

// Identity describes this endpoint to the hub.
type Identity struct {
	Owner           string
	Name            string
	CompatibleTypes string
	// Secret is the plaintext shared secret sent on outbound messages.
	Secret     string
	ListenAddr string
	Cert       string
	Key        string

	IsRegistered bool
}

// Sender delivers one message. *transport.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

// RegistrationMessage builds the register message announcing id.
func RegistrationMessage(id Identity) protocol.Message {
	return protocol.NewMessage(
		id.Owner,
		protocol.FormatRegistration(id.ListenAddr, id.CompatibleTypes),
		id.Name,
		protocol.DatatypeRegister,
		id.Secret,
	)
}

// Register announces id to the hub through sender. IsRegistered reflects
// only whether the send succeeded locally; the hub sends no
// acknowledgement.
func Register(ctx context.Context, id *Identity, sender Sender) bool {
	log.Info().
		Str("name", id.Name).
		Str("listen", id.ListenAddr).
		Msg("try to register endpoint")
	err := sender.Send(ctx, RegistrationMessage(*id))
	id.IsRegistered = transport.Sent(err)
	if !id.IsRegistered {
		log.Warn().Str("name", id.Name).Err(err).Msg("endpoint registration failed")
	}
	return id.IsRegistered
}
