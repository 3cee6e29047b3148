package classifier

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"template-validator/internal/common/config"
)

type Config struct {
	BaseURL          string
	Path             string
	HealthPath       string
	APIKey           string
	Timeout          time.Duration
	MaxResponseBytes int64
}

func DefaultConfig() *Config {
	return &Config{
		Path:             "/classify",
		HealthPath:       "/health",
		Timeout:          30 * time.Second,
		MaxResponseBytes: 1 << 20,
	}
}

// ConfigFromApp maps the application config section onto the client config.
func ConfigFromApp(cfg config.ClassifierConfig) *Config {
	c := DefaultConfig()
	c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c.APIKey = cfg.APIKey
	if cfg.Path != "" {
		c.Path = cfg.Path
	}
	if cfg.HealthPath != "" {
		c.HealthPath = cfg.HealthPath
	}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	if cfg.MaxResponseBytes > 0 {
		c.MaxResponseBytes = cfg.MaxResponseBytes
	}
	return c
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with '/', got %q", c.Path)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max_response_bytes must be positive")
	}
	return nil
}

func (c *Config) classifyURL() string {
	return c.BaseURL + c.Path
}

func (c *Config) healthURL() string {
	return c.BaseURL + c.HealthPath
}
