// Package config loads server settings from the environment and client
// settings from a TOML file.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/vitrina/vitrina/internal/storage"
)

//go:embed config.example.toml
var exampleConf []byte

const appName = "vitrina"

// Server holds everything `vitrina serve` reads from its environment.
type Server struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	BaseURL     string
	GeoIPPath   string
	LogLevel    string
	EnableDocs  bool
	Storage     storage.Config
}

// ServerFlags are shared by every command that talks to the database.
func ServerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "port", Usage: "HTTP listen port", Value: "8080", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "database-url", Usage: "PostgreSQL connection string", Sources: cli.EnvVars("DATABASE_URL")},
		&cli.StringFlag{Name: "jwt-secret", Usage: "HMAC secret for session tokens", Sources: cli.EnvVars("JWT_SECRET")},
		&cli.StringFlag{Name: "base-url", Usage: "Public URL of the gallery", Value: "http://localhost:8080", Sources: cli.EnvVars("BASE_URL")},
		&cli.StringFlag{Name: "geoip-db", Usage: "MaxMind country database for request logs", Sources: cli.EnvVars("GEOIP_DB_PATH")},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "info", Sources: cli.EnvVars("LOG_LEVEL")},
		&cli.BoolFlag{Name: "api-docs", Usage: "Serve the API reference at /api/docs", Sources: cli.EnvVars("API_DOCS_ENABLED")},
		&cli.StringFlag{Name: "s3-endpoint", Usage: "S3 endpoint for media objects", Sources: cli.EnvVars("S3_ENDPOINT")},
		&cli.StringFlag{Name: "s3-public-endpoint", Usage: "S3 endpoint used in presigned URLs", Sources: cli.EnvVars("S3_PUBLIC_ENDPOINT")},
		&cli.StringFlag{Name: "s3-bucket", Usage: "Media bucket", Value: appName, Sources: cli.EnvVars("S3_BUCKET")},
		&cli.StringFlag{Name: "s3-access-key", Sources: cli.EnvVars("S3_ACCESS_KEY")},
		&cli.StringFlag{Name: "s3-secret-key", Sources: cli.EnvVars("S3_SECRET_KEY")},
		&cli.StringFlag{Name: "s3-region", Value: "eu-central-1", Sources: cli.EnvVars("S3_REGION")},
	}
}

func ServerFromCommand(cmd *cli.Command) Server {
	return Server{
		Port:        cmd.String("port"),
		DatabaseURL: cmd.String("database-url"),
		JWTSecret:   cmd.String("jwt-secret"),
		BaseURL:     strings.TrimRight(cmd.String("base-url"), "/"),
		GeoIPPath:   cmd.String("geoip-db"),
		LogLevel:    cmd.String("log-level"),
		EnableDocs:  cmd.Bool("api-docs"),
		Storage: storage.Config{
			Endpoint:       cmd.String("s3-endpoint"),
			PublicEndpoint: cmd.String("s3-public-endpoint"),
			Bucket:         cmd.String("s3-bucket"),
			AccessKey:      cmd.String("s3-access-key"),
			SecretKey:      cmd.String("s3-secret-key"),
			Region:         cmd.String("s3-region"),
		},
	}
}

var ErrNoDatabase = errors.New("DATABASE_URL is required")

func (s Server) RequireDatabase() error {
	if s.DatabaseURL == "" {
		return ErrNoDatabase
	}
	return nil
}

// MediaEndpoint is the origin browsers load presigned media from.
func (s Server) MediaEndpoint() string {
	if s.Storage.PublicEndpoint != "" {
		return s.Storage.PublicEndpoint
	}
	return s.Storage.Endpoint
}

// Client is the terminal client's TOML configuration.
type Client struct {
	Server   string       `toml:"server"`
	LogFile  string       `toml:"log_file"`
	LogLevel string       `toml:"log_level"`
	Player   PlayerConfig `toml:"player"`
}

type PlayerConfig struct {
	Path string   `toml:"path"`
	Args []string `toml:"args"`
}

// DefaultClient returns the settings from the embedded example config.
func DefaultClient() Client {
	var c Client
	if err := toml.Unmarshal(exampleConf, &c); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return c
}

// LoadClient reads path over the defaults. A missing file is not an error.
func LoadClient(path string) (Client, error) {
	c := DefaultClient()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.withDefaults(), nil
		}
		return Client{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return c.withDefaults(), nil
}

func (c Client) withDefaults() Client {
	c.Server = strings.TrimRight(c.Server, "/")
	if c.Player.Path == "" {
		c.Player.Path = "mpv"
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(stateDir(), "vitrina.log")
	}
	return c
}

// CreateClientFile writes the example config to path, refusing to
// overwrite an existing file.
func CreateClientFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func DefaultClientPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, appName, "config.toml")
}

// DefaultSessionPath is where the client keeps its sign-in tokens.
func DefaultSessionPath() string {
	return filepath.Join(stateDir(), "session.db")
}

func stateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appName)
}

// ClientFlags override individual TOML settings.
func ClientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to configuration file", Value: DefaultClientPath()},
		&cli.StringFlag{Name: "server", Usage: "Gallery server URL", Sources: cli.EnvVars("VITRINA_SERVER")},
		&cli.StringFlag{Name: "session", Usage: "Session database path", Value: DefaultSessionPath()},
	}
}

// ClientFromCommand loads the TOML file named by --config and applies flag
// overrides.
func ClientFromCommand(_ context.Context, cmd *cli.Command) (Client, error) {
	c, err := LoadClient(cmd.String("config"))
	if err != nil {
		return Client{}, err
	}
	if s := cmd.String("server"); s != "" {
		c.Server = strings.TrimRight(s, "/")
	}
	if c.Server == "" {
		return Client{}, errors.New("no server configured; set server in the config file or pass --server")
	}
	return c, nil
}
