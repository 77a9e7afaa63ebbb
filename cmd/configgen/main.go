package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/rorilink/internal/config"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := flagSet.String("kind", "endpoint", "config kind: endpoint|client")
	output := flagSet.String("output", "", "output path for config template")
	validate := flagSet.Bool("validate", false, "validate an existing config file")
	input := flagSet.String("input", "", "config path for validation (defaults to per-kind path)")
	force := flagSet.Bool("force", false, "overwrite existing config file")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	path, err := defaultPath(*kind)
	if err != nil {
		return err
	}

	if *validate {
		if *input != "" {
			path = *input
		}
		switch *kind {
		case "endpoint":
			_, err = config.LoadEndpoint(path)
		case "client":
			_, err = config.LoadClient(path)
		}
		if err != nil {
			return err
		}
		fmt.Printf("validated %s config at %s\n", *kind, path)
		return nil
	}

	if *output != "" {
		path = *output
	}
	if err := config.WriteTemplate(path, *kind, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s config template to %s\n", *kind, path)
	return nil
}

func defaultPath(kind string) (string, error) {
	switch kind {
	case "endpoint":
		return "config/endpoint.toml", nil
	case "client":
		return "config/client.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}
