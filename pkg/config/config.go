package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBindAddress   = "127.0.0.1:8000"
	DefaultCaptureFPS    = 5
	DefaultIdlePoll      = 500 * time.Millisecond
	DefaultRetryInterval = time.Second
	DefaultJPEGQuality   = 60
	DefaultInitialURL    = "https://example.com"
)

// Config represents the complete pagecast configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
	Browser BrowserConfig `yaml:"browser"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP/WebSocket listener
type ServerConfig struct {
	BindAddress    string   `yaml:"bind_address"`
	StaticDir      string   `yaml:"static_dir"`      // overrides the embedded viewer assets
	AllowedOrigins []string `yaml:"allowed_origins"` // websocket origin patterns
	EnableMetrics  bool     `yaml:"enable_metrics"`
	AllowRemote    bool     `yaml:"allow_remote"` // permit binding beyond loopback
}

// CaptureConfig tunes the frame capture scheduler
type CaptureConfig struct {
	FPS           int           `yaml:"fps"`
	IdlePoll      time.Duration `yaml:"idle_poll"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// BrowserConfig controls browser acquisition
type BrowserConfig struct {
	ExecPath       string        `yaml:"exec_path"` // chromium binary; searched on PATH when empty
	InitialURL     string        `yaml:"initial_url"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	JPEGQuality    int           `yaml:"jpeg_quality"`
	EnableMirror   bool          `yaml:"enable_mirror"` // secondary visible browser for operators
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a configuration with recommended defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:    DefaultBindAddress,
			AllowedOrigins: nil,
			EnableMetrics:  true,
		},
		Capture: CaptureConfig{
			FPS:           DefaultCaptureFPS,
			IdlePoll:      DefaultIdlePoll,
			RetryInterval: DefaultRetryInterval,
		},
		Browser: BrowserConfig{
			InitialURL:     DefaultInitialURL,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			JPEGQuality:    DefaultJPEGQuality,
			ConnectTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from PAGECAST_CONFIG or ./pagecast.yaml,
// falling back to defaults when no file exists. Environment overrides are
// applied last.
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("PAGECAST_CONFIG"))
	if path == "" {
		path = "pagecast.yaml"
		if _, err := os.Stat(path); err != nil {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from an explicit file path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PAGECAST_BIND")); v != "" {
		cfg.Server.BindAddress = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGECAST_ORIGINS")); v != "" {
		cfg.Server.AllowedOrigins = splitCommaList(v)
	}
	if v, ok := envBool("PAGECAST_ALLOW_REMOTE"); ok {
		cfg.Server.AllowRemote = v
	}
	if v, ok := envBool("PAGECAST_METRICS"); ok {
		cfg.Server.EnableMetrics = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGECAST_FPS")); v != "" {
		if fps, err := strconv.Atoi(v); err == nil && fps > 0 {
			cfg.Capture.FPS = fps
		}
	}
	if v := strings.TrimSpace(os.Getenv("PAGECAST_BROWSER_PATH")); v != "" {
		cfg.Browser.ExecPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGECAST_INITIAL_URL")); v != "" {
		cfg.Browser.InitialURL = v
	}
	if v, ok := envBool("PAGECAST_MIRROR"); ok {
		cfg.Browser.EnableMirror = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGECAST_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envBool(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if c.Capture.FPS <= 0 {
		return fmt.Errorf("capture.fps must be positive, got %d", c.Capture.FPS)
	}
	if c.Capture.IdlePoll <= 0 {
		return fmt.Errorf("capture.idle_poll must be positive, got %s", c.Capture.IdlePoll)
	}
	if c.Capture.RetryInterval <= 0 {
		return fmt.Errorf("capture.retry_interval must be positive, got %s", c.Capture.RetryInterval)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if q := c.Browser.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("browser.jpeg_quality must be in [1,100], got %d", q)
	}
	if !c.Server.AllowRemote && !isLoopbackBindAddress(c.Server.BindAddress) {
		return fmt.Errorf("refusing to bind to %q without server.allow_remote", c.Server.BindAddress)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	return nil
}

func isLoopbackBindAddress(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" || host == "" {
		return host == "localhost"
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
