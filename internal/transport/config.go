package transport

import "time"

// TLSConfig selects and configures the TLS upgrade of a connection.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines per-connection transport limits. A zero duration disables
// the matching deadline and the operation may block indefinitely.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	TLS              TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
	}
}
