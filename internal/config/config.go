// Package config reads server settings from flags and TECHSTORE_* variables.
package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/techstore/internal/auth"
	"github.com/erazemk/techstore/internal/events"
)

// Config holds the server settings.
type Config struct {
	DBPath           string
	Addr             string
	AdminEmail       string
	LogPath          string
	LogFormat        string
	TokenTTL         time.Duration
	OpenRegistration bool
	CORSOrigins      []string
	KafkaBroker      string
	KafkaTopic       string
}

// Usage is printed for -h.
const Usage = `Usage: techstore [flags]

Flags:
  -d, -db <path>          SQLite database path (default: techstore.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -e, -admin <email>      admin email on first run (default: admin@techstore.local)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
      -log-format <fmt>   text or json (default: text)
      -token-ttl <dur>    access token lifetime (default: 192h)
      -registration       allow self-registration (default: true)
      -cors <origins>     comma-separated allowed origins (default: none)
      -kafka <host:port>  Kafka broker for order events (default: disabled)
      -kafka-topic <name> Kafka topic (default: techstore.orders)
  -h, -help               show this help and exit

Every flag can also be set through the environment, e.g. TECHSTORE_DB,
TECHSTORE_ADDR, TECHSTORE_KAFKA_BROKER. Flags win over the environment.
`

func defaults() Config {
	return Config{
		DBPath:           "techstore.sqlite3",
		Addr:             ":8080",
		AdminEmail:       "admin@techstore.local",
		LogFormat:        "text",
		TokenTTL:         auth.DefaultTokenTTL,
		OpenRegistration: true,
		KafkaTopic:       events.DefaultTopic,
	}
}

// Load parses args on top of the environment read through getenv. It returns
// flag.ErrHelp when help was requested.
func Load(args []string, getenv func(string) string, usage io.Writer) (*Config, error) {
	cfg := defaults()
	if err := cfg.fromEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("techstore", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { fmt.Fprint(usage, Usage) }

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.AdminEmail, "admin", cfg.AdminEmail, "")
	fs.StringVar(&cfg.AdminEmail, "e", cfg.AdminEmail, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "")
	fs.BoolVar(&cfg.OpenRegistration, "registration", cfg.OpenRegistration, "")
	fs.StringVar(&cfg.KafkaBroker, "kafka", cfg.KafkaBroker, "")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "")
	cors := strings.Join(cfg.CORSOrigins, ",")
	fs.StringVar(&cors, "cors", cors, "")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, err
		}
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	cfg.CORSOrigins = splitList(cors)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fromEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("TECHSTORE_DB", &c.DBPath)
	str("TECHSTORE_ADDR", &c.Addr)
	str("TECHSTORE_ADMIN_EMAIL", &c.AdminEmail)
	str("TECHSTORE_LOG", &c.LogPath)
	str("TECHSTORE_LOG_FORMAT", &c.LogFormat)
	str("TECHSTORE_KAFKA_BROKER", &c.KafkaBroker)
	str("TECHSTORE_KAFKA_TOPIC", &c.KafkaTopic)

	if v := getenv("TECHSTORE_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := getenv("TECHSTORE_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TECHSTORE_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	if v := getenv("TECHSTORE_OPEN_REGISTRATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TECHSTORE_OPEN_REGISTRATION: %w", err)
		}
		c.OpenRegistration = b
	}
	return nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (text or json)", c.LogFormat)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
