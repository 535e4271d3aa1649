package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// Inbound admission limit across all callers; negative disables it
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type Upstream struct {
	BaseURL       string `yaml:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms"`
	MaxRetries    int    `yaml:"max_retries"`
	BackoffBaseMs int    `yaml:"backoff_base_ms"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	ProxyURL      string `yaml:"proxy_url"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Root struct {
	Server   Server   `yaml:"server"`
	Upstream Upstream `yaml:"upstream"`
	Log      Log      `yaml:"log"`
}

func (u Upstream) MinInterval() time.Duration {
	return time.Duration(u.MinIntervalMs) * time.Millisecond
}

func (u Upstream) BackoffBase() time.Duration {
	return time.Duration(u.BackoffBaseMs) * time.Millisecond
}

func (u Upstream) Timeout() time.Duration {
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// Load reads the YAML file at path (skipped when path is empty), fills
// defaults, then applies environment overrides and validates the result.
func Load(path string) (Root, error) {
	var c Root
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, errors.Wrapf(err, "parse config %s", path)
		}
	}

	applyDefaults(&c)
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrap(err, "invalid config")
	}
	return c, nil
}

func applyDefaults(c *Root) {
	// Server defaults
	if c.Server.Port == "" {
		c.Server.Port = "3001"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.RequestsPerSecond == 0 {
		c.Server.RequestsPerSecond = 20
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 40
	}

	// Upstream defaults
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://www.nseindia.com"
	}
	if c.Upstream.MinIntervalMs == 0 {
		c.Upstream.MinIntervalMs = 1000
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = 3
	}
	if c.Upstream.BackoffBaseMs == 0 {
		c.Upstream.BackoffBaseMs = 1000
	}
	if c.Upstream.TimeoutMs == 0 {
		c.Upstream.TimeoutMs = 10000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func applyEnv(c *Root) error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("INBOUND_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "parse INBOUND_RPS")
		}
		c.Server.RequestsPerSecond = f
	}
	if err := envInt("INBOUND_BURST", &c.Server.Burst); err != nil {
		return err
	}

	if v := os.Getenv("NSE_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	for name, dst := range map[string]*int{
		"MIN_REQUEST_INTERVAL_MS": &c.Upstream.MinIntervalMs,
		"MAX_RETRIES":             &c.Upstream.MaxRetries,
		"BACKOFF_BASE_MS":         &c.Upstream.BackoffBaseMs,
		"REQUEST_TIMEOUT_MS":      &c.Upstream.TimeoutMs,
	} {
		if err := envInt(name, dst); err != nil {
			return err
		}
	}
	// HTTPS_PROXY wins over HTTP_PROXY since the upstream is HTTPS
	for _, name := range []string{"HTTP_PROXY", "HTTPS_PROXY"} {
		if v := os.Getenv(name); v != "" {
			c.Upstream.ProxyURL = v
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return errors.Wrapf(err, "parse %s", name)
	}
	*dst = n
	return nil
}

// Validate rejects values the proxy cannot run with
func (c Root) Validate() error {
	if c.Upstream.MinIntervalMs < 0 {
		return errors.Errorf("upstream.min_interval_ms must be >= 0, got %d", c.Upstream.MinIntervalMs)
	}
	if c.Upstream.MaxRetries < 1 {
		return errors.Errorf("upstream.max_retries must be >= 1, got %d", c.Upstream.MaxRetries)
	}
	if c.Upstream.BackoffBaseMs < 0 {
		return errors.Errorf("upstream.backoff_base_ms must be >= 0, got %d", c.Upstream.BackoffBaseMs)
	}
	if c.Upstream.TimeoutMs <= 0 {
		return errors.Errorf("upstream.timeout_ms must be > 0, got %d", c.Upstream.TimeoutMs)
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("upstream.base_url %q is not an absolute URL", c.Upstream.BaseURL)
	}
	if c.Upstream.ProxyURL != "" {
		if u, err := url.Parse(c.Upstream.ProxyURL); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("upstream.proxy_url %q is not an absolute URL", c.Upstream.ProxyURL)
		}
	}
	if c.Server.RequestsPerSecond > 0 && c.Server.Burst < 1 {
		return errors.Errorf("server.burst must be >= 1 when the inbound limit is enabled, got %d", c.Server.Burst)
	}
	return nil
}
