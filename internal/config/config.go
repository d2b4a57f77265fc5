package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// IdentityProvider holds the external identity provider settings.
type IdentityProvider struct {
	BaseURL      string `yaml:"base_url"`
	Issuer       string `yaml:"issuer"`
	Audience     string `yaml:"audience"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Connection   string `yaml:"connection"`
	JWKSURL      string `yaml:"jwks_url"`
}

// Config carries process configuration. Values come from an optional YAML
// file referenced by COUNSELFLOW_CONFIG, then environment variables on top.
type Config struct {
	HTTPAddr            string           `yaml:"http_addr"`
	GRPCAddr            string           `yaml:"grpc_addr"`
	DatabaseDSN         string           `yaml:"database_dsn"`
	Debug               bool             `yaml:"debug"`
	CORSOrigins         []string         `yaml:"cors_origins"`
	RateBurst           int              `yaml:"rate_burst"`
	RatePerSec          int              `yaml:"rate_per_sec"`
	MaxBodyBytes        int64            `yaml:"max_body_bytes"`
	AuthSecret          string           `yaml:"auth_secret"`
	BootstrapAdminEmail string           `yaml:"bootstrap_admin_email"`
	IdentityProvider    IdentityProvider `yaml:"identity_provider"`
}

const envPrefix = "COUNSELFLOW_"

// Load assembles configuration from defaults, the optional YAML file and
// environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:     ":8080",
		RateBurst:    50,
		RatePerSec:   25,
		MaxBodyBytes: 1 << 20,
	}

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.IdentityProvider.JWKSURL == "" && cfg.IdentityProvider.BaseURL != "" {
		cfg.IdentityProvider.JWKSURL = strings.TrimRight(cfg.IdentityProvider.BaseURL, "/") + "/.well-known/jwks.json"
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.GRPCAddr, "GRPC_ADDR")
	setString(&cfg.DatabaseDSN, "PG_DSN")
	setBool(&cfg.Debug, "DEBUG")
	setInt(&cfg.RateBurst, "RATE_BURST")
	setInt(&cfg.RatePerSec, "RATE_PER_SEC")
	setInt64(&cfg.MaxBodyBytes, "MAX_BODY_BYTES")
	setString(&cfg.AuthSecret, "AUTH_SECRET")
	setString(&cfg.BootstrapAdminEmail, "BOOTSTRAP_ADMIN_EMAIL")

	if v := os.Getenv(envPrefix + "CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	idp := &cfg.IdentityProvider
	setString(&idp.BaseURL, "IDP_BASE_URL")
	setString(&idp.Issuer, "IDP_ISSUER")
	setString(&idp.Audience, "IDP_AUDIENCE")
	setString(&idp.ClientID, "IDP_CLIENT_ID")
	setString(&idp.ClientSecret, "IDP_CLIENT_SECRET")
	setString(&idp.Connection, "IDP_CONNECTION")
	setString(&idp.JWKSURL, "IDP_JWKS_URL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v != "0" && !strings.EqualFold(v, "false")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
