package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults without any keys",
			setup: func() {
				viper.Reset()
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Server.Host)
				assert.Equal(t, "https://api.github.com", cfg.Gists.APIURL)
				assert.True(t, cfg.Gists.Public)
				assert.Equal(t, 30*time.Second, cfg.Gists.Timeout)
				assert.Equal(t, 5*time.Minute, cfg.Auth.HeartbeatInterval)
				assert.Equal(t, ".", cfg.Workspace.ProjectDir)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "registered defaults",
			setup: func() {
				viper.Reset()
				SetDefaults()
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.True(t, cfg.Workspace.Watch)
				assert.Zero(t, cfg.Workspace.ExportTimeout)
			},
		},
		{
			name: "explicit values override defaults",
			setup: func() {
				viper.Reset()
				SetDefaults()
				viper.Set("server.port", 3000)
				viper.Set("server.host", "127.0.0.1")
				viper.Set("server.allowed_origins", []string{"http://localhost:5173"})
				viper.Set("gists.public", false)
				viper.Set("gists.timeout", "5s")
				viper.Set("workspace.export_timeout", "1m")
				viper.Set("logging.format", "json")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
				assert.False(t, cfg.Gists.Public)
				assert.Equal(t, 5*time.Second, cfg.Gists.Timeout)
				assert.Equal(t, time.Minute, cfg.Workspace.ExportTimeout)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "invalid viper config",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "bad api url",
			setup: func() {
				viper.Reset()
				viper.Set("gists.api_url", "ftp://example.com")
			},
			expectError: true,
		},
		{
			name: "negative heartbeat",
			setup: func() {
				viper.Reset()
				viper.Set("auth.heartbeat_interval", "-1s")
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func() {
				viper.Reset()
				viper.Set("logging.level", "loud")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			cfg, err := Load()
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, perrors.IsType(err, perrors.ErrorTypeConfig))
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestInitViperReadsFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	file := filepath.Join(dir, ".popcode.yml")
	content := `
server:
  port: 9090
  host: localhost
gists:
  token: file-token
workspace:
  project_dir: ./projects
  watch: false
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	require.NoError(t, InitViper(file))
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-token", cfg.Gists.Token)
	assert.Equal(t, "./projects", cfg.Workspace.ProjectDir)
	assert.False(t, cfg.Workspace.Watch)
	assert.Equal(t, "https://api.github.com", cfg.Gists.APIURL)
}

func TestInitViperEnvironmentOverride(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Setenv("POPCODE_SERVER_PORT", "4321")
	t.Setenv("POPCODE_LOGGING_LEVEL", "debug")

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	require.NoError(t, InitViper(""))
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4321, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestInitViperMissingExplicitFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	err := InitViper(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, perrors.CodeConfigInvalid, perrors.Code(err))
}

func TestValidateServerConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ServerConfig
		wantErr bool
	}{
		{name: "valid", config: ServerConfig{Port: 8080, Host: "localhost"}},
		{name: "ephemeral port", config: ServerConfig{Port: 0, Host: "localhost"}},
		{name: "negative port", config: ServerConfig{Port: -1, Host: "localhost"}, wantErr: true},
		{name: "semicolon in host", config: ServerConfig{Port: 8080, Host: "localhost;rm"}, wantErr: true},
		{name: "space in host", config: ServerConfig{Port: 8080, Host: "local host"}, wantErr: true},
		{
			name:   "valid origins",
			config: ServerConfig{Port: 8080, Host: "localhost", AllowedOrigins: []string{"https://popcode.org"}},
		},
		{
			name:    "relative origin",
			config:  ServerConfig{Port: 8080, Host: "localhost", AllowedOrigins: []string{"popcode.org"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerConfig(&tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{path: "./projects"},
		{path: "/home/user/popcode"},
		{path: "", wantErr: true},
		{path: "projects;rm -rf", wantErr: true},
		{path: "projects|cat", wantErr: true},
		{path: "projects\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfigWithDetails(t *testing.T) {
	valid := &Config{
		Server:    ServerConfig{Port: 8080, Host: "localhost"},
		Gists:     GistsConfig{APIURL: "https://api.github.com", Token: "t", Timeout: 30 * time.Second},
		Auth:      AuthConfig{HeartbeatInterval: time.Minute},
		Workspace: WorkspaceConfig{ProjectDir: "."},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}

	result := ValidateConfigWithDetails(valid)
	assert.True(t, result.Valid)
	assert.False(t, result.HasErrors())
	assert.False(t, result.HasWarnings())

	broken := *valid
	broken.Server.Port = 99999
	broken.Server.Host = "0.0.0.0"
	broken.Gists.Token = ""
	broken.Logging.Format = "xml"

	result = ValidateConfigWithDetails(&broken)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.String(), "server")
	assert.Contains(t, result.String(), "Validation warnings")
}
