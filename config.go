package reskit

import (
	"fmt"
	"os"
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Download cache directory. Empty means the OS temp directory.
	CacheDir string `env:"RESKIT_CACHE_DIR"`

	// Whether previously downloaded payloads are reused
	UseCache bool `env:"RESKIT_USE_CACHE,default:true"`

	// HTTP probe/fetch header timeout in seconds
	HTTPTimeoutSeconds int `env:"RESKIT_HTTP_TIMEOUT,default:10"`

	// Stream reopen header timeout in seconds (used on Seek)
	StreamTimeoutSeconds int `env:"RESKIT_STREAM_TIMEOUT,default:30"`

	// Download retry attempts (total, including the first try)
	RetryAttempts int `env:"RESKIT_RETRY_ATTEMPTS,default:5"`

	// Payloads larger than this and not gzipped are streamed instead of
	// downloaded (bytes)
	StreamThresholdBytes int64 `env:"RESKIT_STREAM_THRESHOLD,default:100000000"`

	// Content() logs a warning above this size (bytes)
	ContentWarnBytes int64 `env:"RESKIT_CONTENT_WARN,default:52428800"`

	// Serial device configuration
	SerialBaudRate      int `env:"RESKIT_SERIAL_BAUD_RATE,default:230400"`
	SerialReadTimeoutMS int `env:"RESKIT_SERIAL_READ_TIMEOUT_MS,default:1000"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigWithPrefix returns config loaded from environment variables
// carrying the given prefix. Useful when embedding ResKit in a larger
// application with its own env namespace.
func GetConfigWithPrefix(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the documented defaults without consulting the
// environment.
func DefaultConfig() *Config {
	return &Config{
		UseCache:             true,
		HTTPTimeoutSeconds:   10,
		StreamTimeoutSeconds: 30,
		RetryAttempts:        5,
		StreamThresholdBytes: 100_000_000,
		ContentWarnBytes:     50 * 1024 * 1024,
		SerialBaudRate:       230400,
		SerialReadTimeoutMS:  1000,
	}
}

// EffectiveCacheDir resolves the cache directory, falling back to the OS
// temp directory when unset.
func (c *Config) EffectiveCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return os.TempDir()
}

// HTTPTimeout returns the probe/fetch header timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// StreamTimeout returns the stream reopen header timeout as a duration.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// SerialReadTimeout returns the serial read timeout as a duration.
func (c *Config) SerialReadTimeout() time.Duration {
	return time.Duration(c.SerialReadTimeoutMS) * time.Millisecond
}

// Validate checks the configuration for values no opener could work with.
func (c *Config) Validate() error {
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1, got %d", ErrInvalidConfig, c.RetryAttempts)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: HTTP timeout must be positive, got %d", ErrInvalidConfig, c.HTTPTimeoutSeconds)
	}
	if c.StreamTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: stream timeout must be positive, got %d", ErrInvalidConfig, c.StreamTimeoutSeconds)
	}
	if c.StreamThresholdBytes <= 0 {
		return fmt.Errorf("%w: stream threshold must be positive, got %d", ErrInvalidConfig, c.StreamThresholdBytes)
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("%w: serial baud rate must be positive, got %d", ErrInvalidConfig, c.SerialBaudRate)
	}
	if c.SerialReadTimeoutMS < 0 {
		return fmt.Errorf("%w: serial read timeout must not be negative, got %d", ErrInvalidConfig, c.SerialReadTimeoutMS)
	}
	return nil
}
