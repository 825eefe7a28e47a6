// Package config loads the server configuration from YAML with environment
// variable overrides for the values that differ per deployment.
package config

import (
	"fmt"

	"github.com/neologin/backend/internal/mailer"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     mailer.Config  `yaml:"smtp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains PostgreSQL configuration
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig contains token signing and seed admin configuration
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	SeedAdminPassword string `yaml:"seed_admin_password"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.SMTP.Host != "" && c.SMTP.Port == 0 {
		return fmt.Errorf("smtp.port is required when smtp.host is set")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}
