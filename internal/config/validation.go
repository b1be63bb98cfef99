package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError represents a configuration validation issue with suggestions.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues.
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title)
		builder.WriteString(":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

// ValidateConfigWithDetails reports every problem in config instead of
// stopping at the first, and adds warnings for settings that work but are
// probably unintended.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	addError := func(field string, value interface{}, err error, suggestions ...string) {
		if err == nil {
			return
		}
		result.Errors = append(result.Errors, ValidationError{
			Field:       field,
			Value:       value,
			Message:     err.Error(),
			Suggestions: suggestions,
		})
	}

	addError("server", config.Server, validateServerConfig(&config.Server),
		"Use a port between 1024-65535 for non-privileged access",
		"Hosts and origins must not contain shell metacharacters")
	addError("gists", config.Gists, validateGistsConfig(&config.Gists),
		"Use https://api.github.com or your GitHub Enterprise API root")
	if config.Auth.HeartbeatInterval < 0 {
		addError("auth.heartbeat_interval", config.Auth.HeartbeatInterval,
			fmt.Errorf("must not be negative"), "Use 0 to disable the session heartbeat")
	}
	addError("workspace", config.Workspace, validateWorkspaceConfig(&config.Workspace))
	addError("logging", config.Logging, validateLoggingConfig(&config.Logging),
		"Valid levels: debug, info, warn, error", "Valid formats: text, json")

	if host := config.Server.Host; host == "0.0.0.0" || host == "::" || host == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "server.host",
			Value:       host,
			Message:     "server listens on every interface",
			Suggestions: []string{"Use localhost unless the workspace must be reachable from other machines"},
		})
	} else if ip := net.ParseIP(host); ip != nil && !ip.IsLoopback() && len(config.Server.AllowedOrigins) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "server.allowed_origins",
			Value:       config.Server.AllowedOrigins,
			Message:     "non-loopback host without allowed origins only accepts same-host websocket clients",
			Suggestions: []string{"List the origins the view layer is served from"},
		})
	}

	if config.Gists.Token == "" && config.Auth.Token == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "gists.token",
			Message:     "no token configured; anonymous exports will be rejected by the GitHub API",
			Suggestions: []string{"Set POPCODE_GISTS_TOKEN or sign in with POPCODE_AUTH_TOKEN"},
		})
	}

	if config.Gists.Timeout > 0 && config.Gists.Timeout < time.Second {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "gists.timeout",
			Value:   config.Gists.Timeout,
			Message: "timeout under one second will fail most gist requests",
		})
	}

	result.Valid = !result.HasErrors()
	return result
}
