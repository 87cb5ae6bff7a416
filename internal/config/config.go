// Package config loads the server configuration from a JSON file, a .env
// file and PRIMEVISTA_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// PRIMEVISTA_DB_PATH or PRIMEVISTA_S3_BUCKET.
const EnvPrefix = "PRIMEVISTA"

// S3Config selects an S3-compatible bucket for admin uploads. Uploads go to
// the static directory when Bucket is empty.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	Bucket    string `mapstructure:"bucket" json:"bucket,omitempty"`
	AccessKey string `mapstructure:"access_key" json:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key,omitempty"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
	PublicURL string `mapstructure:"public_url" json:"public_url,omitempty"`
}

// Enabled reports whether uploads should go to S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// ServerConfig holds server-side configuration
type ServerConfig struct {
	Host          string `mapstructure:"host" json:"host"`
	Port          int    `mapstructure:"port" json:"port"`
	DBPath        string `mapstructure:"db_path" json:"db_path"`
	StaticDir     string `mapstructure:"static_dir" json:"static_dir"`
	SiteTitle     string `mapstructure:"site_title" json:"site_title"`
	AdminToken    string `mapstructure:"admin_token" json:"admin_token,omitempty"`
	SessionSecret string `mapstructure:"session_secret" json:"session_secret,omitempty"`
	MetricsPort   int    `mapstructure:"metrics_port" json:"metrics_port"`
	Compression   bool   `mapstructure:"compression" json:"compression"`
	PrettyHTML    bool   `mapstructure:"pretty_html" json:"pretty_html"`
	AutoInit      bool   `mapstructure:"auto_init" json:"auto_init"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb" json:"max_upload_mb"`
	LogLevel      string `mapstructure:"log_level" json:"log_level"`
	LogFormat     string `mapstructure:"log_format" json:"log_format"`

	S3 S3Config `mapstructure:"s3" json:"s3"`

	// path is the file the configuration was read from, or would be
	// written to by Save.
	path string
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (c *ServerConfig) MetricsAddr() string {
	if c.MetricsPort <= 0 {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.MetricsPort))
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Path returns the configuration file location.
func (c *ServerConfig) Path() string {
	return c.path
}

// Validate reports settings the server cannot run with.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics_port %d out of range", c.MetricsPort))
	}
	if c.MetricsPort != 0 && c.MetricsPort == c.Port {
		errs = append(errs, errors.New("metrics_port must differ from port"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB))
	}
	return errors.Join(errs...)
}

// Dir returns the configuration directory path
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "primevista"), nil
}

// DefaultPath is the server.json location inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "server.json"), nil
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:        "0.0.0.0",
		Port:        5000,
		DBPath:      "primevista.db",
		StaticDir:   "./static",
		SiteTitle:   "PrimeVista",
		AutoInit:    true,
		MaxUploadMB: 10,
		LogLevel:    "info",
		LogFormat:   "auto",
		S3:          S3Config{Region: "us-east-1"},
	}
}

// Load reads the configuration. path may be empty, in which case the
// default location is used; a missing file is not an error. A .env file in
// the working directory is loaded first, and environment variables take
// precedence over the file.
func Load(path string) (*ServerConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}
	return load(path, true)
}

// LoadFile reads only the file at path over the defaults, ignoring .env and
// environment overrides. Commands that edit and Save the file use it so
// secrets supplied through the environment are never written to disk.
func LoadFile(path string) (*ServerConfig, error) {
	return load(path, false)
}

// New returns the defaults bound to path (or the default location), for
// callers that start over and Save.
func New(path string) (*ServerConfig, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultServerConfig()
	cfg.path = path
	return cfg, nil
}

func load(path string, withEnv bool) (*ServerConfig, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	v := newViper(withEnv)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &ServerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct: %w", err)
	}
	cfg.path = path
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	path, err := DefaultPath()
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

// Save writes cfg as JSON to its path (or the default location) with
// owner-only permissions.
func Save(cfg *ServerConfig) error {
	path := cfg.path
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	cfg.path = path
	return nil
}

func newViper(withEnv bool) *viper.Viper {
	v := viper.New()

	d := DefaultServerConfig()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("static_dir", d.StaticDir)
	v.SetDefault("site_title", d.SiteTitle)
	v.SetDefault("admin_token", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("metrics_port", d.MetricsPort)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("pretty_html", d.PrettyHTML)
	v.SetDefault("auto_init", d.AutoInit)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.public_url", "")

	if !withEnv {
		return v
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Hosting platforms hand the listen port over as a bare PORT.
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	return v
}
