package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
	DriverMemory = "memory"
)

type Config struct {
	Listen  string  `yaml:"listen"`
	Storage Storage `yaml:"storage"`
	Auth    Auth    `yaml:"auth"`
}

type Storage struct {
	// Driver is one of sqlite, json, memory.
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type Auth struct {
	// LoginDelayMS and OTPDelayMS simulate the round trip to a credential
	// backend that does not exist yet. Milliseconds.
	LoginDelayMS int `yaml:"login_delay_ms"`
	OTPDelayMS   int `yaml:"otp_delay_ms"`

	// OTPValiditySeconds is how long an issued passcode stays usable.
	OTPValiditySeconds int `yaml:"otp_validity_seconds"`

	// OTPRequestsPerMinute bounds code issuance per identifier.
	OTPRequestsPerMinute int `yaml:"otp_requests_per_minute"`
}

func (a Auth) LoginDelay() time.Duration {
	return time.Duration(a.LoginDelayMS) * time.Millisecond
}

func (a Auth) OTPDelay() time.Duration {
	return time.Duration(a.OTPDelayMS) * time.Millisecond
}

func (a Auth) OTPValidity() time.Duration {
	return time.Duration(a.OTPValiditySeconds) * time.Second
}

func Default() *Config {
	return &Config{
		Listen: "localhost:8123",
		Storage: Storage{
			Driver: DriverSQLite,
			Path:   "authd.db",
		},
		Auth: Auth{
			LoginDelayMS:         1000,
			OTPDelayMS:           800,
			OTPValiditySeconds:   300,
			OTPRequestsPerMinute: 3,
		},
	}
}

// Load reads the yaml config at path; an empty path means defaults only.
// Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUTHD_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("AUTHD_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("AUTHD_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverJSON, DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver: %q", c.Storage.Driver)
	}

	if c.Storage.Driver != DriverMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage path required for driver %q", c.Storage.Driver)
	}

	if c.Auth.OTPValiditySeconds <= 0 {
		return fmt.Errorf("otp_validity_seconds must be positive")
	}

	return nil
}
