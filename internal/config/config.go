package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/treeline-dev/treeline/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "treeline.json"

	// DefaultPort is the default server port.
	DefaultPort = 4000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"
)

// Config represents the complete treeline.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server,omitempty"`

	// Session contains per-connection session configuration.
	Session SessionConfig `json:"session,omitempty"`

	// Snapshot contains session snapshot persistence configuration.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// AllowedOrigins restricts websocket upgrades to the listed
	// origins. Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// SessionConfig contains per-connection session settings. Durations
// are strings in time.ParseDuration format.
type SessionConfig struct {
	// ReadTimeout is the websocket read deadline (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// WriteTimeout is the websocket write deadline (e.g., "10s").
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// IdleTimeout is how long a session may sit without client
	// activity before it is reaped (e.g., "5m").
	IdleTimeout string `json:"idleTimeout,omitempty"`

	// HandshakeTimeout bounds the opening handshake (e.g., "10s").
	HandshakeTimeout string `json:"handshakeTimeout,omitempty"`

	// ResumeWindow is how long after disconnect a session may be
	// resumed from its snapshot (e.g., "2m").
	ResumeWindow string `json:"resumeWindow,omitempty"`

	// MaxMessageSize is the largest inbound websocket message in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty"`

	// MaxEventQueue is the per-session event queue depth.
	MaxEventQueue int `json:"maxEventQueue,omitempty"`

	// MaxSessions caps live sessions per process. Zero means no cap.
	MaxSessions int `json:"maxSessions,omitempty"`
}

// SnapshotConfig contains session snapshot persistence settings.
type SnapshotConfig struct {
	// Backend selects the snapshot store: "memory" or "s3".
	Backend string `json:"backend,omitempty"`

	// Bucket is the S3 bucket for the s3 backend.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the object key prefix for the s3 backend.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region for the s3 backend. Empty uses the
	// SDK's default resolution.
	Region string `json:"region,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint and instruments sessions.
	Enabled bool `json:"enabled,omitempty"`

	// Namespace is the metrics namespace (default: "treeline").
	Namespace string `json:"namespace,omitempty"`

	// Path is the metrics endpoint path (default: "/metrics").
	Path string `json:"path,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `json:"level,omitempty"`

	// Format is the log output format: "json" or "text".
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: "10s",
		},
		Session: SessionConfig{
			ReadTimeout:      "60s",
			WriteTimeout:     "10s",
			IdleTimeout:      "5m",
			HandshakeTimeout: "10s",
			ResumeWindow:     "2m",
			MaxMessageSize:   64 * 1024,
			MaxEventQueue:    256,
		},
		Snapshot: SnapshotConfig{
			Backend: "memory",
			Prefix:  "treeline/sessions",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "treeline",
			Path:      "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for treeline.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("T401").
				WithDetail("No treeline.json found in " + filepath.Dir(path))
		}
		return nil, errors.New("T400").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("T400").
			WithDetail("Failed to parse treeline.json: " + err.Error()).
			WithSuggestion("Check that treeline.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("T400").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("T400").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Session.ReadTimeout == "" {
		c.Session.ReadTimeout = d.Session.ReadTimeout
	}
	if c.Session.WriteTimeout == "" {
		c.Session.WriteTimeout = d.Session.WriteTimeout
	}
	if c.Session.IdleTimeout == "" {
		c.Session.IdleTimeout = d.Session.IdleTimeout
	}
	if c.Session.HandshakeTimeout == "" {
		c.Session.HandshakeTimeout = d.Session.HandshakeTimeout
	}
	if c.Session.ResumeWindow == "" {
		c.Session.ResumeWindow = d.Session.ResumeWindow
	}
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = d.Session.MaxMessageSize
	}
	if c.Session.MaxEventQueue == 0 {
		c.Session.MaxEventQueue = d.Session.MaxEventQueue
	}

	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = d.Snapshot.Backend
	}
	if c.Snapshot.Prefix == "" {
		c.Snapshot.Prefix = d.Snapshot.Prefix
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("T400").
			WithDetail("Port must be between 0 and 65535")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"session.readTimeout", c.Session.ReadTimeout},
		{"session.writeTimeout", c.Session.WriteTimeout},
		{"session.idleTimeout", c.Session.IdleTimeout},
		{"session.handshakeTimeout", c.Session.HandshakeTimeout},
		{"session.resumeWindow", c.Session.ResumeWindow},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return errors.New("T400").
				WithDetail(field.name + " is not a valid duration: " + field.value)
		}
	}
	switch c.Snapshot.Backend {
	case "memory", "s3":
	default:
		return errors.New("T400").
			WithDetail("snapshot.backend must be \"memory\" or \"s3\", got " + c.Snapshot.Backend)
	}
	if c.Snapshot.Backend == "s3" && c.Snapshot.Bucket == "" {
		return errors.New("T400").
			WithDetail("snapshot.bucket is required for the s3 backend")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("T400").
			WithDetail("log.level must be debug, info, warn, or error, got " + c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.New("T400").
			WithDetail("log.format must be json or text, got " + c.Log.Format)
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return c.Server.Host + ":" + itoa(c.Server.Port)
}

// Duration returns the named duration field, already validated.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout)
}

// ReadTimeout returns the websocket read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return duration(c.Session.ReadTimeout)
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return duration(c.Session.WriteTimeout)
}

// IdleTimeout returns the idle session reap threshold.
func (c *Config) IdleTimeout() time.Duration {
	return duration(c.Session.IdleTimeout)
}

// HandshakeTimeout returns the opening handshake bound.
func (c *Config) HandshakeTimeout() time.Duration {
	return duration(c.Session.HandshakeTimeout)
}

// ResumeWindow returns how long snapshots stay resumable.
func (c *Config) ResumeWindow() time.Duration {
	return duration(c.Session.ResumeWindow)
}

// LogLevel returns the slog level for the configured level string.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing treeline.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("T401").
				WithDetail("No treeline.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
