package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/rorilink/internal/auth"
	"github.com/danmuck/rorilink/internal/endpoint"
	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/danmuck/rorilink/internal/transport"
)

// Endpoint is the resolved configuration of one endpoint process.
type Endpoint struct {
	ListenAddr          string
	RoriAddr            string
	Owner               string
	Name                string
	CompatibleTypes     string
	Secret              string
	Cert                string
	Key                 string
	Transport           transport.Config
	RequireRegistration bool
	Authorized          []auth.AuthorizedClient
}

// Client is the resolved configuration of a one-shot sender. Its ip/port
// name the target, as in a plain rori client config.
type Client struct {
	Address   string
	Secret    string
	Transport transport.Config
}

// LoadEndpoint reads and validates an endpoint config.
func LoadEndpoint(path string) (Endpoint, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return Endpoint{}, err
	}
	cfg, err := endpointFromFile(raw)
	if err != nil {
		return Endpoint{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Endpoint{}, err
	}
	return cfg, nil
}

// LoadClient reads and validates a client config.
func LoadClient(path string) (Client, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return Client{}, err
	}
	tc, err := transportFromFile(raw)
	if err != nil {
		return Client{}, err
	}
	cfg := Client{
		Address:   JoinAddress(raw.IP, raw.Port),
		Secret:    raw.Secret,
		Transport: tc,
	}
	if err := validateAddress("ip/port", cfg.Address); err != nil {
		return Client{}, err
	}
	if err := cfg.Transport.ValidateClient(); err != nil {
		return Client{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

func endpointFromFile(raw File) (Endpoint, error) {
	tc, err := transportFromFile(raw)
	if err != nil {
		return Endpoint{}, err
	}
	if err := validateAuthorized(raw.Authorize); err != nil {
		return Endpoint{}, err
	}
	authorized := make([]auth.AuthorizedClient, 0, len(raw.Authorize))
	for _, entry := range raw.Authorize {
		authorized = append(authorized, auth.AuthorizedClient{
			Name:       strings.TrimSpace(entry.Name),
			SecretHash: strings.TrimSpace(entry.Secret),
		})
	}
	return Endpoint{
		ListenAddr:          JoinAddress(raw.IP, raw.Port),
		RoriAddr:            JoinAddress(raw.RoriIP, raw.RoriPort),
		Owner:               strings.TrimSpace(raw.Owner),
		Name:                strings.TrimSpace(raw.Name),
		CompatibleTypes:     strings.TrimSpace(raw.CompatibleTypes),
		Secret:              raw.Secret,
		Cert:                strings.TrimSpace(raw.Cert),
		Key:                 strings.TrimSpace(raw.Key),
		Transport:           tc,
		RequireRegistration: raw.RequireRegistration,
		Authorized:          authorized,
	}, nil
}

func transportFromFile(raw File) (transport.Config, error) {
	defaults := transport.DefaultConfig()
	cfg := defaults
	var err error
	if cfg.ConnectTimeout, err = parseDuration("connect_timeout", raw.ConnectTimeout, defaults.ConnectTimeout); err != nil {
		return transport.Config{}, err
	}
	if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout, defaults.ReadTimeout); err != nil {
		return transport.Config{}, err
	}
	if cfg.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout, defaults.WriteTimeout); err != nil {
		return transport.Config{}, err
	}
	cfg.TLS = transport.TLSConfig{
		Enabled:            raw.TLS,
		Mutual:             raw.MutualTLS,
		CertFile:           strings.TrimSpace(raw.Cert),
		KeyFile:            strings.TrimSpace(raw.Key),
		CAFile:             strings.TrimSpace(raw.CAFile),
		ServerName:         strings.TrimSpace(raw.ServerName),
		InsecureSkipVerify: raw.InsecureSkipVerify,
	}
	return cfg, nil
}

// Validate reports the startup-fatal problems of an endpoint config.
func (c Endpoint) Validate() error {
	if err := validateAddress("ip/port", c.ListenAddr); err != nil {
		return err
	}
	if err := validateAddress("rori_ip/rori_port", c.RoriAddr); err != nil {
		return err
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrConfig)
	}
	if strings.Contains(c.ListenAddr, "|") {
		return fmt.Errorf("%w: listen address must not contain '|'", ErrConfig)
	}
	if err := c.Transport.ValidateServer(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := c.clientTransport().ValidateClient(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

// Identity is the endpoint as announced to the hub.
func (c Endpoint) Identity() endpoint.Identity {
	return endpoint.Identity{
		Owner:           c.Owner,
		Name:            c.Name,
		CompatibleTypes: c.CompatibleTypes,
		Secret:          c.Secret,
		ListenAddr:      c.ListenAddr,
		Cert:            c.Cert,
		Key:             c.Key,
	}
}

// Validator enforces the authorize list when one is configured.
func (c Endpoint) Validator() auth.Validator {
	return auth.ForClients(c.Authorized)
}

// ServiceConfig wires the endpoint service from this config.
func (c Endpoint) ServiceConfig() endpoint.ServiceConfig {
	return endpoint.ServiceConfig{
		Identity: c.Identity(),
		RoriAddr: c.RoriAddr,
		Client:   c.clientTransport(),
		Server: endpoint.ServerConfig{
			ListenAddr: c.ListenAddr,
			Transport:  c.Transport,
			Limits:     protocol.DefaultLimits(),
			Validator:  c.Validator(),
		},
		RequireRegistration: c.RequireRegistration,
	}
}

// clientTransport is the outbound side: cert and key identify this
// endpoint only when mutual TLS is on.
func (c Endpoint) clientTransport() transport.Config {
	out := c.Transport
	if !out.TLS.Mutual {
		out.TLS.CertFile = ""
		out.TLS.KeyFile = ""
	}
	return out
}
