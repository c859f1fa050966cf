package mssql

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// Scheme prefixes sqlserver connection strings.
const Scheme = "sqlserver://"

// Keys accepted under several spellings, mapped to one canonical key.
var keyAliases = map[string]string{
	"initial catalog":    "database",
	"username":           "user",
	"uid":                "user",
	"userid":             "user",
	"user id":            "user",
	"pwd":                "password",
	"connectiontimeout":  "connecttimeout",
	"connection timeout": "connecttimeout",
}

// Keys that only the engine understands and never reach the driver.
var engineKeys = map[string]bool{
	"schema":           true,
	"connection_limit": true,
	"pool_timeout":     true,
	"socket_timeout":   true,
	"isolationlevel":   true,
}

// ConnString is a parsed sqlserver://host:port;key=value;... string.
type ConnString struct {
	Host     string
	Port     string
	Instance string
	params   map[string]string
}

// ParseConnString parses a sqlserver connection string. Values may be
// wrapped in braces to escape semicolons.
func ParseConnString(raw string) (*ConnString, error) {
	if !strings.HasPrefix(strings.ToLower(raw), Scheme) {
		return nil, fmt.Errorf("invalid sqlserver connection string: missing %s prefix", Scheme)
	}
	parts := splitParams(raw[len(Scheme):])
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("invalid sqlserver connection string: missing host")
	}

	c := &ConnString{params: make(map[string]string)}
	c.Host = parts[0]
	if i := strings.LastIndex(c.Host, ":"); i >= 0 {
		c.Host, c.Port = c.Host[:i], c.Host[i+1:]
	}
	if i := strings.Index(c.Host, `\`); i >= 0 {
		c.Host, c.Instance = c.Host[:i], c.Host[i+1:]
	}
	if c.Port == "" && c.Instance == "" {
		c.Port = "1433"
	}

	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "" {
			continue
		}
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid sqlserver connection string parameter %q", p)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if alias, ok := keyAliases[key]; ok {
			key = alias
		}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
			value = value[1 : len(value)-1]
		}
		c.params[key] = value
	}
	return c, nil
}

func splitParams(s string) []string {
	var parts []string
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '{':
			depth++
		case r == '}' && depth > 0:
			depth--
		case r == ';' && depth == 0:
			parts = append(parts, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	return append(parts, b.String())
}

// Get returns a parameter by canonical key.
func (c *ConnString) Get(key string) string { return c.params[key] }

// Database returns the database name, master by default.
func (c *ConnString) Database() string {
	if db := c.params["database"]; db != "" {
		return db
	}
	return "master"
}

// Schema returns the schema name, dbo by default.
func (c *ConnString) Schema() string {
	if s := c.params["schema"]; s != "" {
		return s
	}
	return DefaultSchema
}

// WithDatabase returns a copy pointing at another database.
func (c *ConnString) WithDatabase(name string) *ConnString {
	cp := *c
	cp.params = make(map[string]string, len(c.params))
	for k, v := range c.params {
		cp.params[k] = v
	}
	cp.params["database"] = name
	return &cp
}

func (c *ConnString) server() string {
	if c.Instance != "" {
		return c.Host + `\` + c.Instance
	}
	return c.Host
}

// DSN renders the driver URL for database, dropping engine only
// parameters. Encryption is off unless requested.
func (c *ConnString) DSN(database string) string {
	u := &url.URL{Scheme: "sqlserver", Host: c.Host}
	if c.Port != "" {
		u.Host = net.JoinHostPort(c.Host, c.Port)
	}
	if c.Instance != "" {
		u.Path = "/" + c.Instance
	}
	if user := c.params["user"]; user != "" {
		u.User = url.UserPassword(user, c.params["password"])
	}

	q := url.Values{}
	q.Set("database", database)
	if c.params["encrypt"] == "" {
		q.Set("encrypt", "disable")
	}
	if t := c.params["connecttimeout"]; t != "" {
		q.Set("connection timeout", t)
	}
	for _, k := range c.keys() {
		switch k {
		case "database", "user", "password", "connecttimeout":
			continue
		}
		q.Set(k, c.params[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// String renders the engine form of the connection string.
func (c *ConnString) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString(c.server())
	if c.Port != "" {
		b.WriteString(":" + c.Port)
	}
	keys := make([]string, 0, len(c.params))
	for k := range c.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, escape(c.params[k]))
	}
	return b.String()
}

func (c *ConnString) keys() []string {
	keys := make([]string, 0, len(c.params))
	for k := range c.params {
		if !engineKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func escape(v string) string {
	if strings.ContainsAny(v, ";{}") {
		return "{" + v + "}"
	}
	return v
}
