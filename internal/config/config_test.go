package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const configTestPrefix = "config:config_test"

var configEnvVars = []string{
	"NATS_URL", "SERVICE_NAME", "BRIDGE_CHANNEL", "REQUESTER_NAME", "RECEIVER_NAME", "BRIDGE_EVENTS_ENABLED", "BRIDGE_EVENTS_SUBJECT",
	"REQUEST_TIMEOUT", "HANDSHAKE_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"PROTOCOL_VERSION", "PEER_VERSION_CONSTRAINT",
	"JOURNAL_DATABASE_URL", "JOURNAL_SQLITE_PATH", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"BRIDGE_HTTP_ADDR", "HTTP_PORT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range configEnvVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", configTestPrefix, err)
	}

	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Errorf("%s - NATSURL = %q, want %q", configTestPrefix, cfg.NATSURL, "nats://127.0.0.1:4222")
	}
	if cfg.ServiceName != "message-bridge" {
		t.Errorf("%s - ServiceName = %q, want %q", configTestPrefix, cfg.ServiceName, "message-bridge")
	}
	if cfg.Channel != "default" {
		t.Errorf("%s - Channel = %q, want %q", configTestPrefix, cfg.Channel, "default")
	}
	if cfg.RequesterName != "remote_call" || cfg.ReceiverName != "native_call" {
		t.Errorf("%s - names = %q/%q", configTestPrefix, cfg.RequesterName, cfg.ReceiverName)
	}
	if !cfg.EventsEnabled || cfg.EventsSubject != "" {
		t.Errorf("%s - EventsEnabled = %v, EventsSubject = %q", configTestPrefix, cfg.EventsEnabled, cfg.EventsSubject)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("%s - RequestTimeout = %v, want 25s", configTestPrefix, cfg.RequestTimeout)
	}
	if cfg.HandshakeTimeout != 10*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("%s - HandshakeTimeout = %v, ShutdownTimeout = %v", configTestPrefix, cfg.HandshakeTimeout, cfg.ShutdownTimeout)
	}
	if cfg.ProtocolVersion != "1.0.0" || cfg.PeerVersionConstraint != "^1.0.0" {
		t.Errorf("%s - protocol = %q %q", configTestPrefix, cfg.ProtocolVersion, cfg.PeerVersionConstraint)
	}
	if cfg.JournalEnabled() {
		t.Errorf("%s - journal should be disabled by default", configTestPrefix)
	}
	if cfg.RunMigrations {
		t.Errorf("%s - expected RunMigrations=false by default", configTestPrefix)
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("%s - MigrationPath = %q, want %q", configTestPrefix, cfg.MigrationPath, "migrations")
	}
	if cfg.HTTPAddr != "" || cfg.HTTPPort != 8080 {
		t.Errorf("%s - HTTPAddr = %q, HTTPPort = %d", configTestPrefix, cfg.HTTPAddr, cfg.HTTPPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("%s - LogLevel = %q, want %q", configTestPrefix, cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("%s - defaults should validate: %v", configTestPrefix, err)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"NATS_URL":                "nats://custom:4222",
		"SERVICE_NAME":            "test-bridge",
		"BRIDGE_CHANNEL":          "tenant-a",
		"BRIDGE_EVENTS_ENABLED":   "false",
		"BRIDGE_EVENTS_SUBJECT":   "ops.bridges",
		"REQUEST_TIMEOUT":         "3s",
		"PROTOCOL_VERSION":        "1.2.0",
		"PEER_VERSION_CONSTRAINT": ">=1.1.0 <2.0.0",
		"JOURNAL_DATABASE_URL":    "postgres://test@localhost/journal",
		"RUN_MIGRATIONS":          "true",
		"HTTP_PORT":               "9090",
		"LOG_LEVEL":               "debug",
	}
	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", configTestPrefix, err)
	}

	if cfg.NATSURL != "nats://custom:4222" || cfg.ServiceName != "test-bridge" || cfg.Channel != "tenant-a" {
		t.Errorf("%s - connection settings = %q %q %q", configTestPrefix, cfg.NATSURL, cfg.ServiceName, cfg.Channel)
	}
	if cfg.EventsEnabled || cfg.EventsSubject != "ops.bridges" {
		t.Errorf("%s - EventsEnabled = %v, EventsSubject = %q", configTestPrefix, cfg.EventsEnabled, cfg.EventsSubject)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("%s - RequestTimeout = %v, want 3s", configTestPrefix, cfg.RequestTimeout)
	}
	if cfg.ProtocolVersion != "1.2.0" || cfg.PeerVersionConstraint != ">=1.1.0 <2.0.0" {
		t.Errorf("%s - protocol = %q %q", configTestPrefix, cfg.ProtocolVersion, cfg.PeerVersionConstraint)
	}
	if !cfg.JournalEnabled() || !cfg.RunMigrations {
		t.Errorf("%s - journal settings not applied", configTestPrefix)
	}
	if cfg.HTTPPort != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("%s - HTTPPort = %d, LogLevel = %q", configTestPrefix, cfg.HTTPPort, cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("%s - overrides should validate: %v", configTestPrefix, err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		t.Errorf("%s - ValidateForDB: %v", configTestPrefix, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Channel:               "default",
			RequesterName:         "remote_call",
			ReceiverName:          "native_call",
			RequestTimeout:        time.Second,
			HandshakeTimeout:      time.Second,
			ShutdownTimeout:       time.Second,
			ProtocolVersion:       "1.0.0",
			PeerVersionConstraint: "^1.0.0",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty channel", func(c *Config) { c.Channel = "" }, "BRIDGE_CHANNEL"},
		{"empty requester", func(c *Config) { c.RequesterName = "" }, "REQUESTER_NAME"},
		{"same names", func(c *Config) { c.ReceiverName = c.RequesterName }, "must differ"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
		{"negative handshake timeout", func(c *Config) { c.HandshakeTimeout = -time.Second }, "HANDSHAKE_TIMEOUT"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "SHUTDOWN_TIMEOUT"},
		{"bad version", func(c *Config) { c.ProtocolVersion = "one" }, "PROTOCOL_VERSION"},
		{"bad constraint", func(c *Config) { c.PeerVersionConstraint = "abc" }, "PEER_VERSION_CONSTRAINT"},
		{"sqlite journal", func(c *Config) { c.JournalSQLitePath = "/tmp/journal.db" }, ""},
		{"both journals", func(c *Config) {
			c.JournalDatabaseURL = "postgres://localhost/journal"
			c.JournalSQLitePath = "/tmp/journal.db"
		}, "only one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("%s - unexpected error: %v", configTestPrefix, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%s - error = %v, want mention of %q", configTestPrefix, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateForDB(t *testing.T) {
	c := &Config{}
	if err := c.ValidateForDB(); err == nil {
		t.Errorf("%s - expected error without JOURNAL_DATABASE_URL", configTestPrefix)
	}
	c.JournalSQLitePath = "journal.db"
	if !c.JournalEnabled() {
		t.Errorf("%s - SQLite path should enable the journal", configTestPrefix)
	}
	if err := c.ValidateForDB(); err == nil {
		t.Errorf("%s - migrate needs Postgres even with a SQLite journal", configTestPrefix)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	os.Setenv("REQUEST_TIMEOUT", "soon")
	defer clearEnv(t)

	if _, err := LoadConfig(); err == nil {
		t.Errorf("%s - expected error for unparseable REQUEST_TIMEOUT", configTestPrefix)
	}
}
