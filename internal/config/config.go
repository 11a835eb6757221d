package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string

	// upstreams
	APIBaseURL  string
	ExecAPIURL  string
	HTTPTimeout time.Duration

	// learner session behavior
	AutocompleteDwell time.Duration
	NotifyTTL         time.Duration
	SessionIdleTTL    time.Duration
	ReconcileSchedule string // cron spec
	StrictEnrollment  bool

	DBDriver string
	DBDSN    string

	BlobBasePath string

	// AuthHMACSecret verifies backend tokens. Empty means tokens are
	// decoded without verification and the backend stays the authority.
	AuthHMACSecret string

	CORSOrigins []string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defCORS := "http://localhost:5173,http://localhost:3000"
	if mode == ModeOnline {
		defCORS = "https://learn.mindengage.ai"
	}
	defLog := "dev"
	if mode == ModeOnline {
		defLog = "prod"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  envOr("LOG_MODE", defLog),

		APIBaseURL:  strings.TrimSuffix(envOr("API_BASE_URL", "http://localhost:8081/api"), "/"),
		ExecAPIURL:  envOr("EXEC_API_URL", "https://emkc.org/api/v2/piston/execute"),
		HTTPTimeout: envDuration("HTTP_TIMEOUT", 15*time.Second),

		AutocompleteDwell: envDuration("AUTOCOMPLETE_DWELL", 30*time.Second),
		NotifyTTL:         envDuration("NOTIFY_TTL", 3*time.Second),
		SessionIdleTTL:    envDuration("SESSION_IDLE_TTL", 30*time.Minute),
		ReconcileSchedule: envOr("RECONCILE_SCHEDULE", "@every 1m"),
		StrictEnrollment:  envBool("STRICT_ENROLLMENT", false),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),

		AuthHMACSecret: os.Getenv("AUTH_HMAC_SECRET"),
		CORSOrigins:    csvOr("CORS_ORIGINS", defCORS),
	}
}

// Validate rejects settings the gateway must not run with. Online mode needs
// a token secret: without one, routes that read only gateway state would
// trust self-signed tokens.
func (c Config) Validate() error {
	if c.Mode == ModeOnline && c.AuthHMACSecret == "" {
		return errors.New("AUTH_HMAC_SECRET is required when MODE=online")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

// envDuration accepts Go durations ("30s") or bare seconds ("30").
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
		return d
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
