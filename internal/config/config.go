// Package config loads endpoint and client settings from TOML, YAML or
// JSON files and turns them into runtime configuration.
package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/rorilink/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// UnsetAddress is what an empty ip/port pair joins to.
const UnsetAddress = transport.UnsetAddress

var (
	ErrConfig          = errors.New("config: invalid configuration")
	ErrEmptyAddress    = errors.New("config: empty address")
	ErrUnknownFormat   = errors.New("config: unknown file format")
	ErrInvalidAuthHash = errors.New("config: authorized secret is not a sha-256 hex digest")
)

// AuthorizedEntry is one allowed client. Secret holds the hex SHA-256
// digest of the client's shared secret, never the plaintext.
type AuthorizedEntry struct {
	Name   string `toml:"name" yaml:"name" json:"name"`
	Secret string `toml:"secret" yaml:"secret" json:"secret"`
}

// File mirrors the on-disk keys shared by every supported format.
type File struct {
	IP                  string            `toml:"ip" yaml:"ip" json:"ip"`
	Port                string            `toml:"port" yaml:"port" json:"port"`
	RoriIP              string            `toml:"rori_ip" yaml:"rori_ip" json:"rori_ip"`
	RoriPort            string            `toml:"rori_port" yaml:"rori_port" json:"rori_port"`
	Owner               string            `toml:"owner" yaml:"owner" json:"owner"`
	Name                string            `toml:"name" yaml:"name" json:"name"`
	CompatibleTypes     string            `toml:"compatible_types" yaml:"compatible_types" json:"compatible_types"`
	Secret              string            `toml:"secret" yaml:"secret" json:"secret"`
	Cert                string            `toml:"cert" yaml:"cert" json:"cert"`
	Key                 string            `toml:"key" yaml:"key" json:"key"`
	TLS                 bool              `toml:"tls" yaml:"tls" json:"tls"`
	MutualTLS           bool              `toml:"mutual_tls" yaml:"mutual_tls" json:"mutual_tls"`
	CAFile              string            `toml:"ca_file" yaml:"ca_file" json:"ca_file"`
	ServerName          string            `toml:"server_name" yaml:"server_name" json:"server_name"`
	InsecureSkipVerify  bool              `toml:"insecure_skip_verify" yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	ConnectTimeout      string            `toml:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout         string            `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout        string            `toml:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	RequireRegistration bool              `toml:"require_registration" yaml:"require_registration" json:"require_registration"`
	Authorize           []AuthorizedEntry `toml:"authorize" yaml:"authorize" json:"authorize"`
}

// JoinAddress combines ip and port into "ip:port". An empty pair yields
// UnsetAddress.
func JoinAddress(ip, port string) string {
	return strings.TrimSpace(ip) + ":" + strings.TrimSpace(port)
}

// ReadFile decodes path according to its extension.
func ReadFile(path string) (File, error) {
	var raw File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return File{}, fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
		}
		for _, key := range meta.Undecoded() {
			log.Warn().Str("path", path).Str("key", key.String()).Msg("unknown config key")
		}
	case ".yaml", ".yml":
		data, err := readConfigBytes(path)
		if err != nil {
			return File{}, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return File{}, fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
		}
	case ".json":
		data, err := readConfigBytes(path)
		if err != nil {
			return File{}, err
		}
		// Comments and trailing commas are tolerated.
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return File{}, fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
		}
	default:
		return File{}, fmt.Errorf("%w: %w: %q", ErrConfig, ErrUnknownFormat, path)
	}
	return raw, nil
}

func readConfigBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrConfig, path, err)
	}
	return data, nil
}

func parseDuration(key, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %w", ErrConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrConfig, key)
	}
	return d, nil
}

// validateAddress rejects the unset sentinel and addresses without a port.
func validateAddress(label, addr string) error {
	if addr == UnsetAddress {
		return fmt.Errorf("%w: %w: %s", ErrConfig, ErrEmptyAddress, label)
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrConfig, label, addr, err)
	}
	if port == "" {
		return fmt.Errorf("%w: %s %q: missing port", ErrConfig, label, addr)
	}
	return nil
}

func validateAuthorized(entries []AuthorizedEntry) error {
	for i, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("%w: authorize[%d] missing name", ErrConfig, i)
		}
		digest := strings.TrimSpace(entry.Secret)
		if b, err := hex.DecodeString(digest); err != nil || len(b) != 32 {
			return fmt.Errorf("%w: %w: authorize[%d] %q", ErrConfig, ErrInvalidAuthHash, i, entry.Name)
		}
	}
	return nil
}
