package connector

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DSNBuilder provides a fluent interface for building database connection strings.
type DSNBuilder struct {
	scheme   string
	username string
	password string
	host     string
	port     int
	database string
	params   map[string]string
}

// NewDSNBuilder creates a new DSN builder for the given scheme.
func NewDSNBuilder(scheme string) *DSNBuilder {
	return &DSNBuilder{
		scheme: scheme,
		params: make(map[string]string),
	}
}

// Auth sets username and password.
func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	b.username = username
	b.password = password
	return b
}

// Host sets the host and port.
func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.host = host
	b.port = port
	return b
}

// Database sets the database name.
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	b.database = name
	return b
}

// Param adds a single parameter. Empty values are skipped.
func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params[key] = value
	}
	return b
}

// Params adds multiple parameters. Empty values are skipped.
func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		if v != "" {
			b.params[k] = v
		}
	}
	return b
}

// Build constructs the final DSN string. Parameters appear in sorted key
// order so the output is stable for a given configuration.
func (b *DSNBuilder) Build() string {
	var dsn strings.Builder

	dsn.WriteString(b.scheme)
	dsn.WriteString("://")

	if b.username != "" {
		dsn.WriteString(url.QueryEscape(b.username))
		if b.password != "" {
			dsn.WriteString(":")
			dsn.WriteString(url.QueryEscape(b.password))
		}
		dsn.WriteString("@")
	}

	dsn.WriteString(b.host)
	if b.port > 0 {
		dsn.WriteString(":")
		dsn.WriteString(strconv.Itoa(b.port))
	}

	if b.database != "" {
		dsn.WriteString("/")
		dsn.WriteString(url.PathEscape(b.database))
	}

	if len(b.params) > 0 {
		keys := make([]string, 0, len(b.params))
		for k := range b.params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		dsn.WriteString("?")
		for i, key := range keys {
			if i > 0 {
				dsn.WriteString("&")
			}
			dsn.WriteString(url.QueryEscape(key))
			dsn.WriteString("=")
			dsn.WriteString(url.QueryEscape(b.params[key]))
		}
	}

	return dsn.String()
}
