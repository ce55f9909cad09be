// Package config loads the relay configuration from .env, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/screen-relay/backend/internal/db"
)

// Config holds the server configuration.
type Config struct {
	Port     string
	DBDriver string
	DBDSN    string

	// RoomName seeds the room id under which positions are stored.
	RoomName      string
	ScreenSegment string

	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMissedPings int

	LogLevel string

	// AllowedOrigins restricts WebSocket upgrades by Origin header; empty allows all.
	AllowedOrigins []string

	// PublicURL is the externally reachable base URL, used for the join QR code.
	PublicURL string
	ShowQR    bool
}

// ErrHelp is returned by Load when -h/--help was requested.
var ErrHelp = flag.ErrHelp

// Load reads envFiles (".env" when none are given; missing files are
// skipped), then the environment, then args.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBDriver:       getEnv("DB_DRIVER", string(db.DialectSQLite)),
		DBDSN:          getEnv("DB_DSN", "data/positions.db"),
		RoomName:       getEnv("ROOM_NAME", "global"),
		ScreenSegment:  getEnv("SCREEN_SEGMENT", "ob"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PublicURL:      getEnv("PUBLIC_URL", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		MaxMissedPings: 3,
		PongTimeout:    10 * time.Second,
		PingInterval:   time.Second,
	}

	var err error
	if cfg.PongTimeout, err = getEnvDuration("PONG_TIMEOUT", cfg.PongTimeout); err != nil {
		return nil, err
	}
	if cfg.PingInterval, err = getEnvDuration("PING_INTERVAL", cfg.PingInterval); err != nil {
		return nil, err
	}
	if cfg.MaxMissedPings, err = getEnvInt("MAX_MISSED_PINGS", cfg.MaxMissedPings); err != nil {
		return nil, err
	}

	flags := flag.NewFlagSet("relay", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	flags.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	flags.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Position store driver (sqlite3|mysql)")
	flags.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "Position store data source name")
	flags.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flags.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "Origins allowed to open the relay (comma separated, empty allows all)")

	// ── room ─────────────────────────────────────────────────────
	flags.StringVar(&cfg.RoomName, "room", cfg.RoomName, "Room name")
	flags.StringVar(&cfg.ScreenSegment, "screen-segment", cfg.ScreenSegment, "First path segment that marks the screen")
	flags.DurationVar(&cfg.PongTimeout, "pong-timeout", cfg.PongTimeout, "Screen silence before it is probed")
	flags.DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "Minimum gap between screen probes")
	flags.IntVar(&cfg.MaxMissedPings, "max-missed-pings", cfg.MaxMissedPings, "Unanswered probes before the screen is dropped")

	// ── output ───────────────────────────────────────────────────
	flags.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "Public base URL for the join QR code")
	flags.BoolVar(&cfg.ShowQR, "qr", false, "Print a QR code of the viewer join URL")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if _, err := db.ParseDialect(c.DBDriver); err != nil {
		return err
	}
	if c.DBDSN == "" {
		return errors.New("database DSN is required")
	}
	if c.RoomName == "" {
		return errors.New("room name is required")
	}
	if c.ScreenSegment == "" || strings.Contains(c.ScreenSegment, "/") {
		return fmt.Errorf("invalid screen segment %q", c.ScreenSegment)
	}
	if c.PongTimeout <= 0 || c.PingInterval <= 0 {
		return errors.New("heartbeat durations must be positive")
	}
	if c.MaxMissedPings <= 0 {
		return errors.New("max missed pings must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// ViewerURL returns the URL viewers connect to, or "" without a public URL.
func (c *Config) ViewerURL() string {
	if c.PublicURL == "" {
		return ""
	}
	base := strings.TrimSuffix(c.PublicURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/relay/"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
