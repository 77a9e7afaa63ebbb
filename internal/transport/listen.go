package transport

import (
	"crypto/tls"
	"net"
)

// Listen opens a TCP listener on addr, wrapped in TLS when cfg enables it.
func Listen(addr string, cfg Config) (net.Listener, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	if !cfg.TLS.Enabled {
		return net.Listen("tcp", addr)
	}
	tlsCfg, err := serverTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", addr, tlsCfg)
}
