// Package config loads operational tuning from environment variables.
// It supplies defaults for the resolver and client; the CLI's
// positional arguments (spec.md §6) always take precedence over what
// this package loads.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log LoggingConfig `koanf:"log" validate:"required"`

	Resolver ResolverConfig `koanf:"resolver" validate:"required"`

	Client ClientConfig `koanf:"client" validate:"required"`

	Metrics MetricsConfig `koanf:"metrics"`
}

type MetricsConfig struct {
	// Addr is the optional debug HTTP listen address for the Prometheus
	// /metrics endpoint (e.g. "127.0.0.1:9153"). Empty disables it; it is
	// never served on the DNS UDP socket.
	Addr string `koanf:"addr"`
}

type LoggingConfig struct {
	// Level defines the logging level: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type ResolverConfig struct {
	// Port is the UDP port the resolver binds for client queries.
	// Overridden by the CLI's required positional port argument.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// TimeoutSeconds bounds how long the resolver waits for a single
	// upstream hop's reply before applying the dead-end handling rule
	// (spec §5).
	TimeoutSeconds int `koanf:"timeout" validate:"required,gte=1"`

	// RootHintsPath is the path to the named.root-format seed file (spec §6).
	RootHintsPath string `koanf:"roothints" validate:"required"`
}

type ClientConfig struct {
	// TimeoutSeconds bounds how long the client waits for the resolver's
	// reply before reporting a local timeout (spec §5/§6).
	TimeoutSeconds int `koanf:"timeout" validate:"required,gte=1"`
}

// DefaultAppConfig mirrors spec.md §5/§6's defaults: resolver timeout 5s,
// client timeout 10s, resolver port 53 (overridden by the CLI's
// required positional port in practice).
var DefaultAppConfig = AppConfig{
	Env: "prod",
	Log: LoggingConfig{
		Level: "info",
	},
	Resolver: ResolverConfig{
		Port:           53,
		TimeoutSeconds: 5,
		RootHintsPath:  "named.root",
	},
	Client: ClientConfig{
		TimeoutSeconds: 10,
	},
}

// envLoader loads environment variables with the prefix "DNS_",
// transforming keys to lowercase dotted paths (e.g. DNS_RESOLVER_TIMEOUT
// -> resolver.timeout). It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "DNS_")), "_", ".")
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DefaultAppConfig into the provided Koanf instance
// using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
