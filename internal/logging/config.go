package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "RORI_LOG_LEVEL"
	EnvLogTimestamp = "RORI_LOG_TIMESTAMP"
	EnvLogNoColor   = "RORI_LOG_NOCOLOR"
	EnvLogJSON      = "RORI_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger shape before it is installed.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	JSON      bool
	Out       io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime(app string) {
	Configure(ProfileRuntime, app)
}

func ConfigureTests() {
	Configure(ProfileTest, "test")
}

// Configure installs the global logger once per process.
func Configure(profile Profile, app string) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		log.Logger = New(cfg, app)
		zerolog.SetGlobalLevel(cfg.Level)
	})
}

// New builds a logger from cfg without touching global state.
func New(cfg Config, app string) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}

func defaultConfig(profile Profile) Config {
	cfg := Config{Out: os.Stderr}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
		cfg.NoColor = true
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
		cfg.NoColor = !isTerminal(os.Stderr)
	}
	return cfg
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
