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
)

// DotEnvFile is read, when present, before the real environment.
const DotEnvFile = ".env"

const envPrefix = "VIPKEEPER_"

type lookupFunc func(key string) (string, bool)

// envLookup returns a lookup over the process environment that falls back
// to the values of the dotenv file at path. Variables set in the process
// win, same as godotenv.Load.
func envLookup(path string) lookupFunc {
	fileVars, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
		fileVars = map[string]string{}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
}

// parseEnv overlays VIPKEEPER_* variables onto config.
//
// Supported variables:
//
//	VIPKEEPER_HTTP_ADDR, VIPKEEPER_DATABASE_DSN, VIPKEEPER_SECRET_KEY,
//	VIPKEEPER_SESSION_TTL, VIPKEEPER_TLS_CERT_FILE, VIPKEEPER_TLS_KEY_FILE,
//	VIPKEEPER_LOG_LEVEL, VIPKEEPER_LOG_FORMAT,
//	VIPKEEPER_ALLOWED_ORIGINS (comma separated),
//	VIPKEEPER_TRUSTED_PROXIES (comma separated IPs or CIDRs),
//	VIPKEEPER_LOGIN_MAX_ATTEMPTS, VIPKEEPER_LOGIN_WINDOW,
//	VIPKEEPER_LOGIN_LOCKOUT, VIPKEEPER_SHUTDOWN_TIMEOUT
//
// Durations use time.ParseDuration syntax ("90s", "1h").
func parseEnv(config *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"HTTP_ADDR":     &config.HTTPAddr,
		"DATABASE_DSN":  &config.DatabaseDSN,
		"SECRET_KEY":    &config.SecretKey,
		"TLS_CERT_FILE": &config.TLSCertFile,
		"TLS_KEY_FILE":  &config.TLSKeyFile,
		"LOG_LEVEL":     &config.LogLevel,
		"LOG_FORMAT":    &config.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL":      &config.SessionTTL,
		"LOGIN_WINDOW":     &config.LoginWindow,
		"LOGIN_LOCKOUT":    &config.LoginLockout,
		"SHUTDOWN_TIMEOUT": &config.ShutdownTimeout,
	}
	for name, dst := range durations {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(envPrefix + "LOGIN_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sLOGIN_MAX_ATTEMPTS: %w", envPrefix, err)
		}
		config.LoginMaxAttempts = n
	}

	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok {
		config.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(envPrefix + "TRUSTED_PROXIES"); ok {
		config.TrustedProxies = splitList(v)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
