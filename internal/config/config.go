// Package config loads the application and provider credential files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidPort        = errors.New("app_port must be between 1 and 65535")
	ErrMissingCredentials = errors.New("credentials must include base_address, consumer_key and consumer_secret")
	ErrInvalidPublicURL   = errors.New("public_url must be an absolute http(s) URL")
)

// Config is the application configuration file.
type Config struct {
	AppHost   string         `json:"app_host"`
	AppPort   int            `json:"app_port"`
	Admins    IDList         `json:"admins"`
	PublicURL string         `json:"public_url"`
	Database  DatabaseConfig `json:"database"`
	Server    ServerConfig   `json:"server"`
}

// DatabaseConfig selects the storage engine.
type DatabaseConfig struct {
	Driver string `json:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"dsn"`    // file path for sqlite, connection string for postgres
}

// ServerConfig holds the HTTP server tuning knobs.
type ServerConfig struct {
	Threads         int `json:"threads"`          // concurrently processed requests
	Backlog         int `json:"backlog"`          // requests allowed to wait for a slot
	ChannelTimeout  int `json:"channel_timeout"`  // seconds
	ConnectionLimit int `json:"connection_limit"` // open connections, 0 for unlimited
}

// Timeout returns ChannelTimeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.ChannelTimeout) * time.Second
}

// Credentials is the provider credentials file.
type Credentials struct {
	BaseAddress    string `json:"base_address"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	Scopes         string `json:"scopes"`
}

// Default returns the configuration used for any field the file leaves unset.
func Default() *Config {
	return &Config{
		AppHost: "0.0.0.0",
		AppPort: 60000,
		Admins:  IDList{},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "database.db",
		},
		Server: ServerConfig{
			Threads:         2,
			Backlog:         2048,
			ChannelTimeout:  120,
			ConnectionLimit: 2000,
		},
	}
}

// Load reads the config file at path on top of Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be served.
func (c *Config) Validate() error {
	if c.AppPort < 1 || c.AppPort > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.AppPort)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPublicURL, c.PublicURL)
		}
	}
	if c.Server.Threads < 1 {
		c.Server.Threads = 1
	}
	if c.Server.Backlog < 0 {
		c.Server.Backlog = 0
	}
	if c.Server.ChannelTimeout < 1 {
		c.Server.ChannelTimeout = 120
	}
	return nil
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.AppHost, c.AppPort)
}

// LoadCredentials reads and validates the provider credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if creds.BaseAddress == "" || creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return nil, ErrMissingCredentials
	}
	if !strings.HasSuffix(creds.BaseAddress, "/") {
		creds.BaseAddress += "/"
	}
	return &creds, nil
}

// IDList is a list of user identifiers. The JSON form may mix strings and numbers.
type IDList []string

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("admins must be a list: %w", err)
	}

	ids := make(IDList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			ids = append(ids, strings.TrimSpace(s))
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("admin id %s is neither string nor number", item)
		}
		if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
			return fmt.Errorf("admin id %s is not an integer", item)
		}
		ids = append(ids, n.String())
	}
	*l = ids
	return nil
}
