package connector

import (
	"fmt"
	"time"
)

// Config represents database connection configuration. The option set is
// fixed at process start; nothing here is reloadable mid-run.
type Config struct {
	Host           string            `json:"host" yaml:"host"`
	Port           int               `json:"port" yaml:"port"`
	Database       string            `json:"database" yaml:"database"`
	Username       string            `json:"username" yaml:"username"`
	Password       string            `json:"password" yaml:"password"`
	SSLMode        string            `json:"ssl_mode" yaml:"ssl_mode"`
	Params         map[string]string `json:"params" yaml:"params"`
	Pool           PoolConfig        `json:"pool" yaml:"pool"`
	ConnectTimeout time.Duration     `json:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration     `json:"query_timeout" yaml:"query_timeout"`
}

// PoolConfig defines connection pool settings for one lane's session.
type PoolConfig struct {
	MaxOpen     int           `json:"max_open" yaml:"max_open"`
	MaxIdle     int           `json:"max_idle" yaml:"max_idle"`
	MaxLifetime time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
	MaxIdleTime time.Duration `json:"max_idle_time" yaml:"max_idle_time"`
}

// Validate checks the fields a connection attempt cannot proceed without.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// DSN builds the PostgreSQL connection string for this configuration.
func (c Config) DSN() string {
	return NewDSNBuilder("postgres").
		Auth(c.Username, c.Password).
		Host(c.Host, c.Port).
		Database(c.Database).
		Param("sslmode", c.SSLMode).
		Params(c.Params).
		Build()
}
