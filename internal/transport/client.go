package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/rs/zerolog/log"
)

// UnsetAddress is what an empty ip/port pair joins to.
const UnsetAddress = ":"

var (
	ErrTransport       = errors.New("transport: send failed")
	ErrAddressRequired = errors.New("transport: target address required")
)

// Client delivers single messages to one target address. Every Send opens a
// fresh connection, writes the encoded message and closes it; no response
// is read.
type Client struct {
	address string
	cfg     Config
}

func NewClient(address string, cfg Config) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" || address == UnsetAddress {
		return nil, ErrAddressRequired
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	return &Client{address: address, cfg: cfg}, nil
}

func (c *Client) Address() string {
	return c.address
}

// Send reports success once the local write returned without error. That
// says nothing about whether the peer processed the message.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	conn, err := c.dial(ctx)
	if err != nil {
		log.Error().
			Str("addr", c.address).
			Str("datatype", msg.Datatype).
			Err(err).
			Msg("could not connect to rori")
		return fmt.Errorf("%w: connect %s: %w", ErrTransport, c.address, err)
	}
	defer conn.Close()

	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := io.WriteString(conn, protocol.Encode(msg)); err != nil {
		log.Error().
			Str("addr", c.address).
			Str("datatype", msg.Datatype).
			Err(err).
			Msg("write to rori failed")
		return fmt.Errorf("%w: write %s: %w", ErrTransport, c.address, err)
	}

	log.Debug().
		Str("addr", c.address).
		Str("client", msg.Client).
		Str("datatype", msg.Datatype).
		Msg("message sent")
	return nil
}

// Sent adapts a Send result to the boolean success contract.
func Sent(err error) bool {
	return err == nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, err
	}
	if !c.cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := clientTLSConfig(c.address, c.cfg.TLS)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}
