// Package config assembles the server configuration from defaults, an
// optional YAML file, the environment (including a .env file) and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port      string `yaml:"port"`
	UploadDir string `yaml:"upload_dir"`
	OutputDir string `yaml:"output_dir"`

	ChromePath   string `yaml:"chrome_path"`
	NoSandbox    bool   `yaml:"no_sandbox"`
	AutoDownload bool   `yaml:"auto_download"`

	// RenderTimeout caps a single render; zero or negative disables it.
	RenderTimeout time.Duration `yaml:"-"`
	RawTimeout    string        `yaml:"render_timeout"`

	// AllowRemoteContent lets mail HTML load remote resources and run
	// scripts. Off by default.
	AllowRemoteContent bool `yaml:"allow_remote_content"`

	// RateLimit is the number of uploads allowed per client IP per
	// minute. Zero disables limiting.
	RateLimit int `yaml:"rate_limit"`

	// TrustProxy honours X-Forwarded-For style headers when identifying
	// clients. Enable only behind a reverse proxy that sets them.
	TrustProxy bool `yaml:"trust_proxy"`

	// CORSOrigins lists origins allowed to call the upload endpoint from
	// a browser. Empty disables CORS handling.
	CORSOrigins []string `yaml:"cors_origins"`

	// LogFormat is "json" or "console".
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:          "3000",
		UploadDir:     "uploads",
		OutputDir:     "output",
		RenderTimeout: 30 * time.Second,
		RawTimeout:    "30s",
		LogFormat:     "json",
	}
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// LookupEnv matches os.LookupEnv; tests swap it for a map.
type LookupEnv func(key string) (string, bool)

// Flags registers the serve flags on fs and returns a function that
// applies whichever of them were set.
func Flags(fs *flag.FlagSet) func(*Config) error {
	var (
		port      = fs.StringP("port", "p", "", "listen port (env PORT)")
		uploadDir = fs.String("upload-dir", "", "directory for staged uploads (env UPLOAD_DIR)")
		outputDir = fs.String("output-dir", "", "directory for generated PDFs (env OUTPUT_DIR)")
		chrome    = fs.String("chrome-path", "", "Chrome/Chromium executable (env CHROME_PATH)")
		noSandbox = fs.Bool("no-sandbox", false, "disable the Chrome sandbox (env CHROME_NO_SANDBOX)")
		download  = fs.Bool("auto-download", false, "download Chromium if needed (env CHROME_AUTO_DOWNLOAD)")
		timeout   = fs.Duration("render-timeout", 0, "per-render timeout, 0 disables (env RENDER_TIMEOUT)")
		remote    = fs.Bool("allow-remote-content", false, "let mail HTML fetch remote resources (env ALLOW_REMOTE_CONTENT)")
		rate      = fs.Int("rate-limit", 0, "uploads per minute per IP, 0 disables (env RATE_LIMIT)")
		logFormat = fs.String("log-format", "", "json or console (env LOG_FORMAT)")
		origins   = fs.StringSlice("cors-origin", nil, "allowed CORS origin, repeatable (env CORS_ORIGINS)")
		proxy     = fs.Bool("trust-proxy", false, "take client IPs from proxy headers (env TRUST_PROXY)")
	)

	return func(c *Config) error {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "port":
				c.Port = *port
			case "upload-dir":
				c.UploadDir = *uploadDir
			case "output-dir":
				c.OutputDir = *outputDir
			case "chrome-path":
				c.ChromePath = *chrome
			case "no-sandbox":
				c.NoSandbox = *noSandbox
			case "auto-download":
				c.AutoDownload = *download
			case "render-timeout":
				c.RenderTimeout = *timeout
				c.RawTimeout = timeout.String()
			case "allow-remote-content":
				c.AllowRemoteContent = *remote
			case "rate-limit":
				c.RateLimit = *rate
			case "log-format":
				c.LogFormat = *logFormat
			case "cors-origin":
				c.CORSOrigins = *origins
			case "trust-proxy":
				c.TrustProxy = *proxy
			}
		})
		return c.validate()
	}
}

// Load builds the configuration from the YAML file at path (skipped when
// empty), a .env file in the working directory if present, and the
// process environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	return load(path, os.LookupEnv)
}

func load(path string, env LookupEnv) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			return fmt.Errorf("config: render_timeout: %w", err)
		}
		c.RenderTimeout = d
	}
	return nil
}

func (c *Config) applyEnv(env LookupEnv) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := env(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("PORT", &c.Port)
	str("UPLOAD_DIR", &c.UploadDir)
	str("OUTPUT_DIR", &c.OutputDir)
	str("CHROME_PATH", &c.ChromePath)
	str("LOG_FORMAT", &c.LogFormat)

	for key, dst := range map[string]*bool{
		"CHROME_NO_SANDBOX":    &c.NoSandbox,
		"CHROME_AUTO_DOWNLOAD": &c.AutoDownload,
		"ALLOW_REMOTE_CONTENT": &c.AllowRemoteContent,
		"TRUST_PROXY":          &c.TrustProxy,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}

	if v, ok := env("RENDER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: RENDER_TIMEOUT: %w", err)
		}
		c.RenderTimeout = d
		c.RawTimeout = v
	}
	if v, ok := env("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := env("RATE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("config: invalid port %q", c.Port)
	}
	if c.UploadDir == "" || c.OutputDir == "" {
		return errors.New("config: upload and output directories must be set")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative, got %d", c.RateLimit)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
