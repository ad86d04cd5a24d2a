package main

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Keksclan/rawrcart/catalog"
	"github.com/Keksclan/rawrcart/shop"
)

// Config is the process configuration. Every flag defaults to its
// environment variable, which defaults to the built-in value.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	ExternalURL string
	AddTimeout  time.Duration
	Products    int
	TraceStdout bool
	Debug       bool
}

// RedisAddr returns host:port, or "" when either part is unset.
func (c Config) RedisAddr() string {
	if c.RedisHost == "" || c.RedisPort == "" {
		return ""
	}
	return net.JoinHostPort(c.RedisHost, c.RedisPort)
}

func loadConfig(args []string, getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	db, err := strconv.Atoi(env("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("REDIS_DB: %w", err)
	}
	addTimeout, err := time.ParseDuration(env("RAWRCART_ADD_TIMEOUT", shop.DefaultAddTimeout.String()))
	if err != nil {
		return Config{}, fmt.Errorf("RAWRCART_ADD_TIMEOUT: %w", err)
	}
	traceStdout, err := strconv.ParseBool(env("RAWRCART_TRACE_STDOUT", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("RAWRCART_TRACE_STDOUT: %w", err)
	}

	var cfg Config
	fs := flag.NewFlagSet("rawrcart", flag.ContinueOnError)
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", env("RAWRCART_GRPC_ADDR", ":50051"), "gRPC listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", env("RAWRCART_METRICS_ADDR", ":9090"), "Prometheus listen address, empty to disable")
	fs.StringVar(&cfg.RedisHost, "redis-host", env("REDIS_HOST", ""), "Redis host")
	fs.StringVar(&cfg.RedisPort, "redis-port", env("REDIS_PORT", ""), "Redis port")
	fs.StringVar(&cfg.RedisUsername, "redis-username", env("REDIS_USERNAME", ""), "Redis username")
	fs.StringVar(&cfg.RedisPassword, "redis-password", env("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", db, "Redis database")
	fs.StringVar(&cfg.ExternalURL, "external-url", env("RAWRCART_EXTERNAL_URL", shop.DefaultExternalURL), "External data URL")
	fs.DurationVar(&cfg.AddTimeout, "add-timeout", addTimeout, "AddItem deadline")
	fs.IntVar(&cfg.Products, "products", catalog.DefaultSize, "Number of generated products")
	fs.BoolVar(&cfg.TraceStdout, "trace-stdout", traceStdout, "Export spans to stdout")
	fs.BoolVar(&cfg.Debug, "debug", false, "Log at debug level")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.AddTimeout <= 0 {
		return Config{}, fmt.Errorf("add timeout must be positive, got %s", cfg.AddTimeout)
	}
	if cfg.Products <= 0 {
		return Config{}, fmt.Errorf("products must be positive, got %d", cfg.Products)
	}
	return cfg, nil
}
