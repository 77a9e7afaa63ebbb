package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/danmuck/rorilink/internal/transport"
	"github.com/rs/zerolog/log"
)

var ErrRegistrationFailed = errors.New("endpoint: registration failed")

// ServiceConfig wires identity, hub address and listener settings.
type ServiceConfig struct {
	Identity Identity
	RoriAddr string
	Client   transport.Config
	Server   ServerConfig
	// RequireRegistration stops Run when the register send fails instead of
	// serving unregistered.
	RequireRegistration bool
}

// Service runs one endpoint: listen, register with the hub, then serve.
type Service struct {
	cfg    ServiceConfig
	server *Server
	client *transport.Client

	mu sync.Mutex
	id Identity
}

func NewService(cfg ServiceConfig, queue *Queue) (*Service, error) {
	client, err := transport.NewClient(cfg.RoriAddr, cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("rori client: %w", err)
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = cfg.Identity.ListenAddr
	}
	return &Service{
		cfg:    cfg,
		server: NewServer(cfg.Server, queue),
		client: client,
		id:     cfg.Identity,
	}, nil
}

func (s *Service) Server() *Server {
	return s.server
}

// Identity returns a copy of the endpoint identity, including the
// registration flag.
func (s *Service) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Run blocks until ctx is cancelled or the listener fails.
func (s *Service) Run(ctx context.Context) error {
	ln, err := s.server.Listen()
	if err != nil {
		return err
	}
	return s.RunOn(ctx, ln)
}

// RunOn registers and serves on an existing listener.
func (s *Service) RunOn(ctx context.Context, ln net.Listener) error {
	id := s.Identity()
	registered := Register(ctx, &id, s.client)
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	if !registered && s.cfg.RequireRegistration {
		_ = ln.Close()
		return fmt.Errorf("%w: rori=%s", ErrRegistrationFailed, s.client.Address())
	}
	log.Info().
		Str("name", id.Name).
		Str("rori", s.client.Address()).
		Bool("registered", registered).
		Msg("endpoint ready")
	return s.server.Serve(ctx, ln)
}
