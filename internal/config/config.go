package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/crx-deploy/internal/logger"
)

// Config holds the deployment target and tuning shared by every command.
type Config struct {
	// Host is the host[:port] of the content management server.
	Host string `yaml:"host"`
	// User is the account used for basic authentication.
	User string `yaml:"user"`
	// Password is the plain password; it is encoded by the session, not here.
	Password string `yaml:"password,omitempty"`
	// Retry is how many times a timed out request is re-sent.
	// Nil means requests are never retried.
	Retry *int `yaml:"retry,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
	// UploadTimeout bounds a single package upload attempt.
	UploadTimeout time.Duration `yaml:"upload_timeout,omitempty"`
	// InstallTimeout bounds a single package install attempt.
	InstallTimeout time.Duration `yaml:"install_timeout,omitempty"`
	// RecompileTimeout bounds a single JSP recompile attempt.
	RecompileTimeout time.Duration `yaml:"recompile_timeout,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for deployment settings.
	DefaultConfigFilename = "crx-deploy.yaml"

	// DefaultUploadTimeout is the package manager upload timeout.
	DefaultUploadTimeout = 300 * time.Second

	// DefaultInstallTimeout is the package manager install timeout.
	DefaultInstallTimeout = 300 * time.Second

	// DefaultRecompileTimeout is the JSP recompile timeout.
	DefaultRecompileTimeout = 120 * time.Second

	// DefaultFilePermissions is the file permission for saved settings,
	// which may contain a password.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errHostRequired is returned when the target host is missing.
	errHostRequired = errors.New("host must be provided")
	// errUserRequired is returned when the user is missing.
	errUserRequired = errors.New("user must be provided")
	// errPasswordRequired is returned when the password is missing.
	errPasswordRequired = errors.New("password must be provided")
	// errInvalidHost is returned when host is not a bare host[:port].
	errInvalidHost = errors.New("host must be a bare host[:port]")
	// errNegativeRetry is returned for a retry budget below zero.
	errNegativeRetry = errors.New("retry must not be negative")
	// errUnknownLogLevel is returned for a log level ParseLogLevel rejects.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads configuration from the provided path.
// It does not validate: overrides from the environment or flags are
// usually applied afterwards, followed by Validate.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in default timeouts.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return errHostRequired
	}

	if err := validateHost(cfg.Host); err != nil {
		return err
	}

	if cfg.User == "" {
		return errUserRequired
	}

	if cfg.Password == "" {
		return errPasswordRequired
	}

	if cfg.Retry != nil && *cfg.Retry < 0 {
		return fmt.Errorf("%w: %d", errNegativeRetry, *cfg.Retry)
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}

	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = DefaultInstallTimeout
	}

	if cfg.RecompileTimeout <= 0 {
		cfg.RecompileTimeout = DefaultRecompileTimeout
	}

	return nil
}

// validateHost rejects values carrying a scheme, credentials or a path,
// since the session builds the URL around the host itself.
func validateHost(host string) error {
	u, err := url.Parse("http://" + host)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidHost, err)
	}

	if u.Host != host || u.User != nil || u.Path != "" || u.RawQuery != "" {
		return fmt.Errorf("%w: %q", errInvalidHost, host)
	}

	return nil
}
