// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	BackendAddress  string `env:"BACKEND_ADDRESS"`
	IdentityAddress string `env:"IDENTITY_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envBackendAddress := cfg.BackendAddress
	envIdentityAddress := cfg.IdentityAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.BackendAddress, "b", "", "sweetshop backend address")
	flag.StringVar(&cfg.IdentityAddress, "i", "", "identity provider address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envBackendAddress != "" {
		cfg.BackendAddress = envBackendAddress
	}
	if envIdentityAddress != "" {
		cfg.IdentityAddress = envIdentityAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.BackendAddress == "" {
		return nil, fmt.Errorf("backend address is required")
	}

	return cfg, nil
}
