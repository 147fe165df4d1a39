package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transport names for reaching the configuration store.
const (
	TransportClient = "client" // external SQL client binary, one invocation per query
	TransportDriver = "driver" // in-process database/sql driver
)

type StoreConfig struct {
	Engine         string `yaml:"engine" json:"engine"`                   // mysql, postgres, sqlite
	Transport      string `yaml:"transport" json:"transport"`             // client (default) or driver
	Client         string `yaml:"client" json:"client"`                   // client binary path, e.g. /usr/bin/mysql
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	Username       string `yaml:"username" json:"username"`
	Password       string `yaml:"password" json:"password"`
	DatabaseName   string `yaml:"database_name" json:"database_name"`
	DSN            string `yaml:"dsn" json:"dsn"` // optional explicit DSN (driver transport only)
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

type SnapshotConfig struct {
	Path string `yaml:"path" json:"path"`
}

type AppConfig struct {
	Store    StoreConfig    `yaml:"store" json:"store"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// LoadFile loads YAML config from path.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	f, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NormalizeEngine maps common aliases to canonical keys (keeps backwards compat).
func NormalizeEngine(e string) string {
	switch strings.ToLower(strings.TrimSpace(e)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "mysql", "mariadb", "":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(e)
	}
}

// NormalizeTransport maps aliases to the canonical transport keys.
func NormalizeTransport(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "client", "cli", "exec":
		return TransportClient
	case "driver", "direct", "native":
		return TransportDriver
	default:
		return strings.ToLower(t)
	}
}

// BuildDriverAndDSN produces a database/sql driver name and DSN for the
// driver transport.
func BuildDriverAndDSN(st StoreConfig) (driver string, dsn string, err error) {
	e := NormalizeEngine(st.Engine)

	if st.DSN != "" {
		switch e {
		case "mysql", "postgres", "sqlite":
			return e, st.DSN, nil
		}
		return "", "", fmt.Errorf("unsupported store engine: %s", st.Engine)
	}

	switch e {
	case "mysql":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			st.Username, st.Password, st.Host, st.Port, st.DatabaseName)
	case "postgres":
		driver = "postgres"
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			st.Username, st.Password, st.Host, st.Port, st.DatabaseName)
	case "sqlite":
		driver = "sqlite"
		if st.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		}
		dsn = fmt.Sprintf("file:%s?mode=ro", st.DatabaseName)
	default:
		err = fmt.Errorf("unsupported store engine: %s", st.Engine)
	}
	return
}
