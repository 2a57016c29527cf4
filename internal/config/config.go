package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
}

// envSpec is the environment-variable surface of the service. All
// variables are prefixed with CHATRELAY_, e.g. CHATRELAY_DATABASE_DSN.
type envSpec struct {
	ServerAddr     string   `envconfig:"SERVER_ADDR"`
	DatabaseDSN    string   `envconfig:"DATABASE_DSN"`
	SigningKey     string   `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

// Load builds the effective configuration from the environment with
// non-empty overrides (typically command-line flags) taking precedence.
func Load(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	var spec envSpec
	if err := envconfig.Process("chatrelay", &spec); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if serverAddr != "" {
		spec.ServerAddr = serverAddr
	}
	if databaseDSN != "" {
		spec.DatabaseDSN = databaseDSN
	}
	if base64Secret != "" {
		spec.SigningKey = base64Secret
	}
	if len(allowedOrigins) > 0 {
		spec.AllowedOrigins = allowedOrigins
	}

	return NewConfig(spec.ServerAddr, spec.DatabaseDSN, spec.SigningKey, spec.AllowedOrigins)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
	}, nil
}
