package core

import (
	"fmt"
	"strings"
)

type ServerConfig struct {
	Address string `koanf:"address" mapstructure:"address"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
}

// CredentialsConfig holds the shared application keys every request must
// present. A request passes when the application id matches and at least
// one of the REST or client keys matches.
type CredentialsConfig struct {
	ApplicationIDHeader string `koanf:"application_id_header" mapstructure:"application_id_header"`
	ApplicationID       string `koanf:"application_id" mapstructure:"application_id"`
	RESTKeyHeader       string `koanf:"rest_key_header" mapstructure:"rest_key_header"`
	RESTKey             string `koanf:"rest_key" mapstructure:"rest_key"`
	ClientKeyHeader     string `koanf:"client_key_header" mapstructure:"client_key_header"`
	ClientKey           string `koanf:"client_key" mapstructure:"client_key"`
	SessionHeader       string `koanf:"session_header" mapstructure:"session_header"`
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	Server      ServerConfig      `koanf:"server" mapstructure:"server"`
	Database    DatabaseConfig    `koanf:"database" mapstructure:"database"`
	Credentials CredentialsConfig `koanf:"credentials" mapstructure:"credentials"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "hidrateapp",
		Server: ServerConfig{
			Address: ":8000",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:hidrateapp.db?cache=shared&_fk=1",
		},
		Credentials: CredentialsConfig{
			ApplicationIDHeader: "X-Parse-Application-Id",
			RESTKeyHeader:       "X-Parse-Rest-Api-Key",
			ClientKeyHeader:     "X-Parse-Client-Key",
			SessionHeader:       "X-Parse-Session-Token",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("core: server.address is required")
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("core: database.driver must be sqlite3 or postgres")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("core: database.dsn is required")
	}
	if strings.TrimSpace(c.Credentials.ApplicationIDHeader) == "" {
		return fmt.Errorf("core: credentials.application_id_header is required")
	}
	return nil
}
