package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "endpoint":
		return endpointTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const endpointTemplate = `# listen address announced to rori
ip = "127.0.0.1"
port = "5000"

rori_ip = "127.0.0.1"
rori_port = "1989"

owner = "alice"
name = "endpoint.local"
compatible_types = "text"
secret = "change-me"

tls = false
cert = ""
key = ""
ca_file = ""
insecure_skip_verify = false

read_timeout = "15s"
require_registration = false

# listing any client turns authorization on; secret is sha256(plaintext) as hex
# [[authorize]]
# name = "rori"
# secret = "<sha256 hex of the client secret>"
`

const clientTemplate = `# rori address
ip = "127.0.0.1"
port = "1989"

secret = "change-me"
tls = false
ca_file = ""
connect_timeout = "5s"
write_timeout = "15s"
`
