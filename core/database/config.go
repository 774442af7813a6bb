package database

import (
	"net"
	"net/url"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir is resolved against the working directory when relative; defaults to "migrations".
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether enough settings are present to open a connection.
func (c Config) Enabled() bool {
	return c.Host != "" && c.Name != ""
}

// DSN returns a postgres URL usable by lib/pq and golang-migrate.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, port),
		Path:   "/" + c.Name,
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	return u.String()
}
