// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

// Package config provides configuration utilities.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Auth       AuthConfig       `yaml:"auth"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ConnectionConfig identifies a ClickHouse database and the credentials used
// to reach it. Token is either the password itself or a signed token
// carrying it, depending on AuthConfig.
type ConnectionConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	User     string `yaml:"user" json:"user"`
	Token    string `yaml:"token" json:"-"`
	Secure   bool   `yaml:"secure" json:"secure"`
}

type TransferConfig struct {
	BatchSize        int     `yaml:"batch_size"`
	NullToken        string  `yaml:"null_token"`
	Delimiter        string  `yaml:"delimiter"`
	MaxRowsPerSecond float64 `yaml:"max_rows_per_second"`
	ExportDir        string  `yaml:"export_dir"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ServerConfig struct {
	Listen      string   `yaml:"listen"`
	MaxSessions int      `yaml:"max_sessions"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "default",
			User:     "default",
		},
		Transfer: TransferConfig{
			BatchSize: 1000,
			Delimiter: ",",
			ExportDir: ".",
		},
		Server: ServerConfig{
			Listen:      ":8000",
			MaxSessions: 64,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "logfmt",
		},
	}
}

// ParseConfig reads a YAML file on top of Default.
func ParseConfig(configPath string) (*Config, error) {
	configFile, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer configFile.Close()

	config := Default()
	decoder := yaml.NewDecoder(configFile)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", configPath, err)
	}

	return config, nil
}

// Environment variables that override file settings.
const (
	EnvHost      = "CHINGEST_HOST"
	EnvPort      = "CHINGEST_PORT"
	EnvDatabase  = "CHINGEST_DATABASE"
	EnvUser      = "CHINGEST_USER"
	EnvToken     = "CHINGEST_TOKEN"
	EnvJWTSecret = "CHINGEST_JWT_SECRET"
)

// ApplyEnv overrides settings from the process environment.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvHost); ok {
		c.Connection.Host = v
	}
	if v, ok := os.LookupEnv(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Connection.Port = port
	}
	if v, ok := os.LookupEnv(EnvDatabase); ok {
		c.Connection.Database = v
	}
	if v, ok := os.LookupEnv(EnvUser); ok {
		c.Connection.User = v
	}
	if v, ok := os.LookupEnv(EnvToken); ok {
		c.Connection.Token = v
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok {
		c.Auth.JWTSecret = v
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

// Validate checks the fields needed to open a connection.
func (c ConnectionConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("connection host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("connection port %d is out of range", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("connection database cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("connection user cannot be empty")
	}
	return nil
}

// Addr returns host:port.
func (c ConnectionConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) validateTransfer() error {
	if c.Transfer.BatchSize < 1 {
		return fmt.Errorf("batch_size must be greater than 0")
	}
	if c.Transfer.MaxRowsPerSecond < 0 {
		return fmt.Errorf("max_rows_per_second cannot be negative")
	}
	if _, err := c.Transfer.DelimiterRune(); err != nil {
		return err
	}
	return nil
}

// DelimiterRune returns the field delimiter as a single rune.
func (t TransferConfig) DelimiterRune() (rune, error) {
	if t.Delimiter == "" {
		return ',', nil
	}
	r, size := utf8.DecodeRuneInString(t.Delimiter)
	if size != len(t.Delimiter) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q must be a single character", t.Delimiter)
	}
	switch r {
	case '"', '\r', '\n':
		return 0, fmt.Errorf("delimiter %q is not allowed", t.Delimiter)
	}
	return r, nil
}

func (c *Config) validateServer() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address cannot be empty")
	}
	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be greater than 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "logfmt", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
