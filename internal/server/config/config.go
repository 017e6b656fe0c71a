// Package config handles configuration for the server component,
// including defaults, environment, JSON overlay, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
)

// MemoryDSN selects the in-memory user store instead of PostgreSQL.
const MemoryDSN = "memory"

// Config holds runtime settings for the vipkeeper server.
//
// Fields:
//   - HTTPAddr: bind address for the HTTP listener.
//   - DatabaseDSN: PostgreSQL DSN (pgx) or MemoryDSN.
//   - SecretKey: HMAC secret for signing session tokens (HS256).
//   - SessionTTL: lifetime of an issued session token and its cookie.
//   - TLSCertFile / TLSKeyFile: serve HTTPS when both are set.
//   - LoginMaxAttempts / LoginWindow / LoginLockout: per-IP login throttle.
//   - TrustedProxies: IPs or CIDRs of reverse proxies whose forwarding
//     headers are believed. Empty means the socket peer is the client.
type Config struct {
	HTTPAddr         string
	DatabaseDSN      string
	SecretKey        string
	SessionTTL       time.Duration
	TLSCertFile      string
	TLSKeyFile       string
	LogLevel         string
	LogFormat        string
	AllowedOrigins   []string
	TrustedProxies   []string
	LoginMaxAttempts int
	LoginWindow      time.Duration
	LoginLockout     time.Duration
	ShutdownTimeout  time.Duration

	// GeneratedSecret is true when SecretKey was not configured and a
	// random one was made up at startup.
	GeneratedSecret bool
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DatabaseDSN = MemoryDSN
	c.SecretKey = ""
	c.SessionTTL = time.Hour
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.AllowedOrigins = nil
	c.TrustedProxies = nil
	c.LoginMaxAttempts = 5
	c.LoginWindow = 15 * time.Minute
	c.LoginLockout = 10 * time.Minute
	c.ShutdownTimeout = 10 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (and an optional .env file), an optional JSON file
// and finally from command-line flags in args (os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, envLookup(DotEnvFile)); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		s, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		cfg.SecretKey = s
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TLSEnabled reports whether both halves of the certificate pair are set.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, s := range c.TrustedProxies {
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		a = a.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return prefixes, nil
}

// Validate reports settings the server can not run with.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is empty"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is empty"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.SessionTTL < time.Second {
		errs = append(errs, fmt.Errorf("session ttl %s is shorter than 1s", c.SessionTTL))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls needs both a certificate and a key file"))
	}
	if c.LoginMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("login max attempts must be positive, got %d", c.LoginMaxAttempts))
	}
	if c.LoginWindow <= 0 {
		errs = append(errs, fmt.Errorf("login window must be positive, got %s", c.LoginWindow))
	}
	if c.LoginLockout <= 0 {
		errs = append(errs, fmt.Errorf("login lockout must be positive, got %s", c.LoginLockout))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
