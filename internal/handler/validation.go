package handler

import (
	"errors"
	"fmt"
	"net/url"

	"shortlink/internal/shortcode"
)

const (
	maxURLLength   = 2048
	minAliasLength = 3
	maxAliasLength = 64
)

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url is required")
	}

	if len(rawURL) > maxURLLength {
		return errors.New("url exceeds maximum length of 2048 characters")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("URL scheme must be http or https")
	}

	if parsed.Host == "" {
		return errors.New("URL must have a host")
	}

	return nil
}

// validateAlias accepts an empty alias, meaning one is generated.
func validateAlias(alias string) error {
	if alias == "" {
		return nil
	}
	if len(alias) < minAliasLength || len(alias) > maxAliasLength {
		return fmt.Errorf("alias must be between %d and %d characters", minAliasLength, maxAliasLength)
	}
	for i := 0; i < len(alias); i++ {
		if !shortcode.IsURLSafe(alias[i]) {
			return errors.New("alias may only contain letters, digits, '-' and '_'")
		}
	}
	return nil
}
