// Package config provides bridge configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	masterminds "github.com/Masterminds/semver/v3"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds message-bridge configuration.
type Config struct {
	// NATS connection carrying both directions of the bridge.
	NATSURL     string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"message-bridge"`

	// Channel names the subject pair shared with the host (bridge.<channel>.to_host / to_native).
	Channel string `envconfig:"BRIDGE_CHANNEL" default:"default"`
	// RequesterName prefixes the request/response message types of outgoing calls.
	RequesterName string `envconfig:"REQUESTER_NAME" default:"remote_call"`
	// ReceiverName prefixes the request/response message types of incoming calls.
	ReceiverName string `envconfig:"RECEIVER_NAME" default:"native_call"`
	// EventsEnabled publishes lifecycle events over NATS.
	EventsEnabled bool `envconfig:"BRIDGE_EVENTS_ENABLED" default:"true"`
	// EventsSubject overrides the subject receiving lifecycle events of every channel.
	EventsSubject string `envconfig:"BRIDGE_EVENTS_SUBJECT"`

	// Timeouts
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Protocol handshake
	ProtocolVersion       string `envconfig:"PROTOCOL_VERSION" default:"1.0.0"`
	PeerVersionConstraint string `envconfig:"PEER_VERSION_CONSTRAINT" default:"^1.0.0"`

	// Call journal: Postgres URL or SQLite file path (both empty = disabled)
	JournalDatabaseURL string `envconfig:"JOURNAL_DATABASE_URL"`
	JournalSQLitePath  string `envconfig:"JOURNAL_SQLITE_PATH"`
	RunMigrations      bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health endpoint (BRIDGE_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr string `envconfig:"BRIDGE_HTTP_ADDR"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// JournalEnabled reports whether completed calls are journaled.
func (c *Config) JournalEnabled() bool {
	return c.JournalDatabaseURL != "" || c.JournalSQLitePath != ""
}

// Validate checks the configuration needed to run the bridge.
func (c *Config) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("%s - BRIDGE_CHANNEL must not be empty", logPrefix)
	}
	if c.RequesterName == "" || c.ReceiverName == "" {
		return fmt.Errorf("%s - REQUESTER_NAME and RECEIVER_NAME must not be empty", logPrefix)
	}
	if c.RequesterName == c.ReceiverName {
		return fmt.Errorf("%s - REQUESTER_NAME and RECEIVER_NAME must differ", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%s - HANDSHAKE_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	if _, err := masterminds.NewVersion(c.ProtocolVersion); err != nil {
		return fmt.Errorf("%s - PROTOCOL_VERSION %q is not a semantic version: %w", logPrefix, c.ProtocolVersion, err)
	}
	if _, err := masterminds.NewConstraint(c.PeerVersionConstraint); err != nil {
		return fmt.Errorf("%s - PEER_VERSION_CONSTRAINT %q is invalid: %w", logPrefix, c.PeerVersionConstraint, err)
	}
	if c.JournalDatabaseURL != "" && c.JournalSQLitePath != "" {
		return fmt.Errorf("%s - set only one of JOURNAL_DATABASE_URL and JOURNAL_SQLITE_PATH", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running journal commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.JournalDatabaseURL == "" {
		return fmt.Errorf("%s - JOURNAL_DATABASE_URL is required", logPrefix)
	}
	return nil
}
