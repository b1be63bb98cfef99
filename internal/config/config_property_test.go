//go:build property
// +build property

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validBase() Config {
	return Config{
		Server:    ServerConfig{Port: 8080, Host: "localhost"},
		Gists:     GistsConfig{APIURL: "https://api.github.com", Timeout: time.Second},
		Workspace: WorkspaceConfig{ProjectDir: "."},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports in range validate", prop.ForAll(
		func(port int) bool {
			cfg := validBase()
			cfg.Server.Port = port
			return validateConfig(&cfg) == nil
		},
		gen.IntRange(0, 65535),
	))

	properties.Property("ports out of range are rejected", prop.ForAll(
		func(port int) bool {
			cfg := validBase()
			cfg.Server.Port = port
			return validateConfig(&cfg) != nil
		},
		gen.OneGenOf(gen.IntRange(-100000, -1), gen.IntRange(65536, 1000000)),
	))

	properties.Property("hosts with shell metacharacters are rejected", prop.ForAll(
		func(prefix string, meta string) bool {
			cfg := validBase()
			cfg.Server.Host = prefix + meta
			return validateConfig(&cfg) != nil
		},
		gen.AlphaString(),
		gen.OneConstOf(";", "&", "|", "`", "$", "<", ">"),
	))

	properties.Property("negative durations are rejected", prop.ForAll(
		func(d int64) bool {
			cfg := validBase()
			cfg.Gists.Timeout = -time.Duration(d)
			return validateConfig(&cfg) != nil
		},
		gen.Int64Range(1, int64(time.Hour)),
	))

	properties.Property("detailed validation agrees with validateConfig", prop.ForAll(
		func(port int, level string) bool {
			cfg := validBase()
			cfg.Server.Port = port
			cfg.Logging.Level = level
			detailed := ValidateConfigWithDetails(&cfg)
			return detailed.Valid == (validateConfig(&cfg) == nil)
		},
		gen.IntRange(-10, 70000),
		gen.OneConstOf("debug", "info", "warn", "error", "LOUD", strings.Repeat("x", 3)),
	))

	properties.TestingRun(t)
}
