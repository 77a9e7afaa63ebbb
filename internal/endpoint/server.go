package endpoint

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/rorilink/internal/auth"
	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/danmuck/rorilink/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrListenAddressRequired = errors.New("endpoint: listen address required")

// RegisterFunc receives register messages that passed authorization.
type RegisterFunc func(msg protocol.Message, reg protocol.Registration)

// ServerConfig configures the inbound listener.
type ServerConfig struct {
	ListenAddr string
	Transport  transport.Config
	Limits     protocol.Limits
	// Validator gates every decoded message. Nil admits everything.
	Validator  auth.Validator
	OnRegister RegisterFunc
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: transport.DefaultConfig(),
		Limits:    protocol.DefaultLimits(),
	}
}

// Server reads one message per accepted connection and queues text
// payloads. Connections are handled inline, one at a time.
type Server struct {
	cfg   ServerConfig
	queue *Queue

	connMu  sync.Mutex
	current net.Conn
}

func NewServer(cfg ServerConfig, queue *Queue) *Server {
	if cfg.Validator == nil {
		cfg.Validator = auth.AllowAll{}
	}
	if queue == nil {
		queue = NewQueue()
	}
	return &Server{cfg: cfg, queue: queue}
}

func (s *Server) Queue() *Queue {
	return s.queue
}

// Listen opens the configured listen address.
func (s *Server) Listen() (net.Listener, error) {
	addr := strings.TrimSpace(s.cfg.ListenAddr)
	if addr == "" || addr == transport.UnsetAddress {
		return nil, ErrListenAddressRequired
	}
	return transport.Listen(addr, s.cfg.Transport)
}

// Run listens on the configured address and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled or ln is closed. Per-connection
// failures are logged and never end the loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.Transport.TLS.Enabled).
		Msg("endpoint listening")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeCurrent()
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.setCurrent(conn)
		if ctx.Err() != nil {
			_ = conn.Close()
		}
		s.handleConn(conn)
		s.setCurrent(nil)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	logger := log.With().
		Str("conn", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	if s.cfg.Transport.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.Transport.ReadTimeout))
	}
	msg, err := protocol.ReadMessage(conn, s.cfg.Limits)
	if err != nil {
		logger.Warn().Err(err).Msg("discarding connection")
		return
	}
	s.process(logger, msg)
}

func (s *Server) process(logger zerolog.Logger, msg protocol.Message) {
	logger = logger.With().
		Str("client", msg.Client).
		Str("author", msg.Author).
		Str("datatype", msg.Datatype).
		Logger()

	if err := s.cfg.Validator.Validate(msg); err != nil {
		logger.Warn().Err(err).Msg("message denied")
		return
	}

	switch msg.Datatype {
	case protocol.DatatypeText:
		s.queue.Push(msg.Content)
		logger.Debug().Int("bytes", len(msg.Content)).Msg("text queued")
	case protocol.DatatypeRegister:
		if s.cfg.OnRegister == nil {
			logger.Debug().Msg("register message ignored")
			return
		}
		reg, err := protocol.ParseRegistration(msg.Content)
		if err != nil {
			logger.Warn().Err(err).Msg("bad registration")
			return
		}
		logger.Info().Str("endpoint", reg.Address).Str("types", reg.CompatibleTypes).Msg("registration received")
		s.cfg.OnRegister(msg, reg)
	default:
		logger.Debug().Msg("unhandled datatype")
	}
}

func (s *Server) setCurrent(conn net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.current = conn
}

func (s *Server) closeCurrent() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.current != nil {
		_ = s.current.Close()
	}
}
