package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "WEBPOOL"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Port            int           `config:"port"`
	Host            string        `config:"host"`
	Workers         int           `config:"workers"`
	QueueSize       int           `config:"queue_size"`
	MaxConnections  int           `config:"max_connections"`
	MaxRequestBytes int           `config:"max_request_bytes"`
	ReadTimeout     int           `config:"read_timeout"`     // seconds
	WriteTimeout    int           `config:"write_timeout"`    // seconds
	ShutdownTimeout int           `config:"shutdown_timeout"` // seconds
	ServerName      string        `config:"server_name"`
	SleepDelay      time.Duration `config:"sleep_delay"`
	IndexFile       string        `config:"index_file"`
	ReusePort       bool          `config:"reuse_port"`
	RateLimit       int           `config:"rate_limit"` // requests per second, 0 disables
	Env             string        `config:"env"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Port:            8080,
		Host:            "",
		Workers:         4,
		QueueSize:       1024,
		MaxConnections:  0,
		MaxRequestBytes: 8192,
		ReadTimeout:     10,
		WriteTimeout:    30,
		ShutdownTimeout: 15,
		ServerName:      "webpool",
		SleepDelay:      5 * time.Second,
		IndexFile:       "hello.html",
		Env:             "development",
	}
}

// New loads configuration from the command line, the file named by -config
// and WEBPOOL_* environment variables. Invalid configuration is fatal.
func New() *Config {
	cfg, err := Load(os.Args[1:], os.Environ())
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Load builds a Config from defaults, then the JSON file given with -config,
// then environment variables, then flags set explicitly in args.
func Load(args, environ []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("webpool", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a JSON configuration file")
	bindFlags(fs, cfg)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m := NewManager()
	if *configFile != "" {
		if err := m.LoadFromJSON(*configFile); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnviron(EnvPrefix, environ)
	if keys := m.Keys(); len(keys) > 0 {
		log.Printf("[config] %d settings from file and environment", len(keys))
	}
	if err := m.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// explicit flags win over file and environment
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "interface to bind (empty for all)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of worker threads")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "pending connection queue size")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum open connections (0 for unlimited)")
	fs.IntVar(&cfg.MaxRequestBytes, "max-request-bytes", cfg.MaxRequestBytes, "maximum request size in bytes")
	fs.IntVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "HTTP read timeout (seconds)")
	fs.IntVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "HTTP write timeout (seconds)")
	fs.IntVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout (seconds)")
	fs.StringVar(&cfg.ServerName, "server-name", cfg.ServerName, "value of the Server response header")
	fs.DurationVar(&cfg.SleepDelay, "sleep-delay", cfg.SleepDelay, "delay of the /sleep endpoint")
	fs.StringVar(&cfg.IndexFile, "index-file", cfg.IndexFile, "HTML file served on GET /")
	fs.BoolVar(&cfg.ReusePort, "reuse-port", cfg.ReusePort, "set SO_REUSEPORT on the listener")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "requests per second (0 disables)")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development/production)")
}

// Validate checks ranges of every numeric setting
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.QueueSize < 0:
		return fmt.Errorf("%w: queue size must not be negative, got %d", ErrInvalidConfig, c.QueueSize)
	case c.MaxConnections < 0:
		return fmt.Errorf("%w: max connections must not be negative, got %d", ErrInvalidConfig, c.MaxConnections)
	case c.MaxRequestBytes <= 0:
		return fmt.Errorf("%w: max request bytes must be positive, got %d", ErrInvalidConfig, c.MaxRequestBytes)
	case c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	case c.SleepDelay < 0:
		return fmt.Errorf("%w: sleep delay must not be negative", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative, got %d", ErrInvalidConfig, c.RateLimit)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether Env is "production"
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
