package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateNavigationURL checks a URL before a window is pointed at it. Only
// absolute http(s) URLs with a host are accepted, which keeps a misbehaving
// gist service from steering the export window to javascript: or file: URLs.
func ValidateNavigationURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %q (only http/https allowed)", parsed.Scheme)
	}

	if strings.ContainsAny(rawURL, " \n\r\"'<>`") {
		return fmt.Errorf("URL contains characters that are not allowed")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
