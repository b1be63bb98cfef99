// Package config provides configuration management for popcode using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports a .popcode.yml file, environment variable
// overrides with the POPCODE_ prefix, defaults, and validation. It manages the
// server surface, the gist API, the auth session heartbeat, the on-disk
// workspace, and logging.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/spf13/viper"
)

const (
	// FileName is the base name of the configuration file, without extension.
	FileName = ".popcode"
	// EnvPrefix prefixes every environment override, e.g. POPCODE_SERVER_PORT.
	EnvPrefix = "POPCODE"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Gists     GistsConfig     `mapstructure:"gists" yaml:"gists"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type GistsConfig struct {
	APIURL  string        `mapstructure:"api_url" yaml:"api_url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Public  bool          `mapstructure:"public" yaml:"public"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AuthConfig struct {
	// Token signs the user in with a personal access token. Empty means the
	// workspace stays anonymous until a token is supplied.
	Token             string        `mapstructure:"token" yaml:"token"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
}

type WorkspaceConfig struct {
	ProjectDir     string `mapstructure:"project_dir" yaml:"project_dir"`
	Watch          bool   `mapstructure:"watch" yaml:"watch"`
	DefaultProject string `mapstructure:"default_project" yaml:"default_project"`
	// ExportTimeout bounds a single export. Zero means no timeout.
	ExportTimeout time.Duration `mapstructure:"export_timeout" yaml:"export_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default value of every key on the global viper
// instance.
func SetDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.allowed_origins", []string{})
	viper.SetDefault("gists.api_url", "https://api.github.com")
	viper.SetDefault("gists.token", "")
	viper.SetDefault("gists.public", true)
	viper.SetDefault("gists.timeout", 30*time.Second)
	viper.SetDefault("auth.token", "")
	viper.SetDefault("auth.heartbeat_interval", 5*time.Minute)
	viper.SetDefault("workspace.project_dir", ".")
	viper.SetDefault("workspace.watch", true)
	viper.SetDefault("workspace.default_project", "")
	viper.SetDefault("workspace.export_timeout", time.Duration(0))
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// InitViper points the global viper instance at the config file, or at
// .popcode.yml in the working and home directories when file is empty.
func InitViper(file string) error {
	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(FileName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && file == "" {
			return nil
		}
		return perrors.NewConfigError(perrors.CodeConfigInvalid,
			fmt.Sprintf("reading config file: %v", err))
	}
	return nil
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, perrors.NewConfigError(perrors.CodeConfigInvalid,
			fmt.Sprintf("decoding config: %v", err))
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, perrors.NewConfigError(perrors.CodeConfigInvalid,
			fmt.Sprintf("configuration validation failed: %v", err))
	}

	return &config, nil
}

// applyDefaults fills zero values for keys that were never registered with
// SetDefaults, e.g. when a caller builds viper state by hand.
func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 8080
	}
	if config.Gists.APIURL == "" {
		config.Gists.APIURL = "https://api.github.com"
	}
	if !viper.IsSet("gists.public") {
		config.Gists.Public = true
	}
	if config.Gists.Timeout == 0 && !viper.IsSet("gists.timeout") {
		config.Gists.Timeout = 30 * time.Second
	}
	if config.Auth.HeartbeatInterval == 0 && !viper.IsSet("auth.heartbeat_interval") {
		config.Auth.HeartbeatInterval = 5 * time.Minute
	}
	if config.Workspace.ProjectDir == "" {
		config.Workspace.ProjectDir = "."
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// validateConfig validates the configuration for security and correctness.
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateGistsConfig(&config.Gists); err != nil {
		return fmt.Errorf("gists config: %w", err)
	}
	if config.Auth.HeartbeatInterval < 0 {
		return fmt.Errorf("auth config: heartbeat_interval must not be negative")
	}
	if err := validateWorkspaceConfig(&config.Workspace); err != nil {
		return fmt.Errorf("workspace config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	for _, origin := range config.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("allowed origin %q is not an absolute URL", origin)
		}
	}

	return nil
}

func validateGistsConfig(config *GistsConfig) error {
	u, err := url.Parse(config.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("api_url %q has no host", config.APIURL)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

func validateWorkspaceConfig(config *WorkspaceConfig) error {
	if err := validatePath(config.ProjectDir); err != nil {
		return fmt.Errorf("invalid project_dir: %w", err)
	}
	if config.DefaultProject != "" {
		if err := validatePath(config.DefaultProject); err != nil {
			return fmt.Errorf("invalid default_project: %w", err)
		}
	}
	if config.ExportTimeout < 0 {
		return fmt.Errorf("export_timeout must not be negative")
	}
	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("unknown level %q", config.Level)
	}
	switch strings.ToLower(config.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", config.Format)
	}
	return nil
}

// validatePath validates a path for security issues.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	dangerousChars := []string{";", "&", "|", "`", "$", "<", ">", "\""}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	if strings.ContainsAny(cleanPath, "\x00\n\r") {
		return fmt.Errorf("path contains control characters")
	}

	return nil
}
