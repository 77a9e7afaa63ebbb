package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

var (
	ErrTLSRequired         = errors.New("transport: tls required")
	ErrTLSCertFileRequired = errors.New("transport: tls cert file required")
	ErrTLSKeyFileRequired  = errors.New("transport: tls key file required")
	ErrTLSCAFileRequired   = errors.New("transport: tls ca file required")
)

func (c Config) ValidateClient() error {
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.CAFile) == "" && !c.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if c.TLS.Mutual {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

func (c Config) ValidateServer() error {
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	if c.TLS.Mutual && strings.TrimSpace(c.TLS.CAFile) == "" {
		return ErrTLSCAFileRequired
	}
	return nil
}

func clientTLSConfig(address string, t TLSConfig) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(t.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(t.CAFile); caPath != "" {
		pool, err := loadCertPool(caPath)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if t.Mutual {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func serverTLSConfig(t TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}
	if t.Mutual {
		pool, err := loadCertPool(t.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("transport: parse tls ca bundle: %s", path)
	}
	return pool, nil
}
