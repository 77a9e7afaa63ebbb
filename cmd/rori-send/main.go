package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/rorilink/internal/config"
	"github.com/danmuck/rorilink/internal/logging"
	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/danmuck/rorilink/internal/transport"
	"github.com/spf13/pflag"
)

type sendParams struct {
	configPath string
	addr       string
	author     string
	content    string
	client     string
	datatype   string
	secret     string

	tls                bool
	caFile             string
	serverName         string
	insecureSkipVerify bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rori-send: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var p sendParams
	flagSet := pflag.NewFlagSet("rori-send", pflag.ContinueOnError)
	flagSet.StringVarP(&p.configPath, "config", "c", "", "client config file naming the target ip/port")
	flagSet.StringVar(&p.addr, "addr", "", "target host:port (overrides --config)")
	flagSet.StringVar(&p.author, "author", "", "message author")
	flagSet.StringVar(&p.content, "content", "", "message content")
	flagSet.StringVar(&p.client, "client", "", "sending client id")
	flagSet.StringVar(&p.datatype, "datatype", protocol.DatatypeText, "message datatype")
	flagSet.StringVar(&p.secret, "secret", "", "shared secret (defaults to the config secret)")
	flagSet.BoolVar(&p.tls, "tls", false, "use TLS with --addr")
	flagSet.StringVar(&p.caFile, "ca-file", "", "CA bundle for verifying the target with --addr --tls")
	flagSet.StringVar(&p.serverName, "server-name", "", "TLS server name override with --addr --tls")
	flagSet.BoolVar(&p.insecureSkipVerify, "insecure-skip-verify", false, "skip TLS verification with --addr --tls")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logging.ConfigureRuntime("rori-send")

	addr, tc, secret, err := resolveTarget(p)
	if err != nil {
		return err
	}
	if p.secret != "" {
		secret = p.secret
	}

	msg := protocol.NewMessage(p.author, p.content, p.client, p.datatype, secret)
	if err := msg.Validate(); err != nil {
		return err
	}
	client, err := transport.NewClient(addr, tc)
	if err != nil {
		return err
	}
	return client.Send(context.Background(), msg)
}

func resolveTarget(p sendParams) (string, transport.Config, string, error) {
	if strings.TrimSpace(p.addr) != "" {
		tc := transport.DefaultConfig()
		tc.TLS = transport.TLSConfig{
			Enabled:            p.tls,
			CAFile:             strings.TrimSpace(p.caFile),
			ServerName:         strings.TrimSpace(p.serverName),
			InsecureSkipVerify: p.insecureSkipVerify,
		}
		return p.addr, tc, "", nil
	}
	if strings.TrimSpace(p.configPath) == "" {
		return "", transport.Config{}, "", errors.New("one of --addr or --config is required")
	}
	cfg, err := config.LoadClient(p.configPath)
	if err != nil {
		return "", transport.Config{}, "", err
	}
	return cfg.Address, cfg.Transport, cfg.Secret, nil
}
