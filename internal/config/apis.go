package config

import (
	"fmt"
	"net/url"
)

const defaultUserAPIURL string = "http://localhost:3000"
const defaultSystemAPIURL string = "http://localhost:3001"

// APIsConfig holds the base URLs of the two backends. When RuntimeConfigURL is set the URLs
// published there take precedence over the ones configured here.
type APIsConfig struct {
	UserAPIURL       *url.URL
	SystemAPIURL     *url.URL
	RuntimeConfigURL string
}

func (c *APIsConfig) Validate() error {
	if c.UserAPIURL == nil {
		return fmt.Errorf("the apis config is missing the url to the user service")
	}
	if c.SystemAPIURL == nil {
		return fmt.Errorf("the apis config is missing the url to the system service")
	}
	if c.RuntimeConfigURL != "" {
		_, err := url.ParseRequestURI(c.RuntimeConfigURL)
		if err != nil {
			return fmt.Errorf("the runtime config url is not valid: %w", err)
		}
	}
	return nil
}
