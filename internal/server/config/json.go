package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/vipkeeper/internal/flagx"
	"github.com/dmitrijs2005/vipkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations go through
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Zero values leave the current setting untouched.
type JsonConfig struct {
	HTTPAddr         string         `json:"http_addr"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	SessionTTL       timex.Duration `json:"session_ttl"`
	TLSCertFile      string         `json:"tls_cert_file"`
	TLSKeyFile       string         `json:"tls_key_file"`
	LogLevel         string         `json:"log_level"`
	LogFormat        string         `json:"log_format"`
	AllowedOrigins   []string       `json:"allowed_origins"`
	TrustedProxies   []string       `json:"trusted_proxies"`
	LoginMaxAttempts int            `json:"login_max_attempts"`
	LoginWindow      timex.Duration `json:"login_window"`
	LoginLockout     timex.Duration `json:"login_lockout"`
	ShutdownTimeout  timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c or -config in args, if any, and
// copies its non-zero values into config.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigFlags(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TLSCertFile, c.TLSCertFile)
	setString(&config.TLSKeyFile, c.TLSKeyFile)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.SessionTTL.IsSet() {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.LoginWindow.IsSet() {
		config.LoginWindow = c.LoginWindow.Duration
	}
	if c.LoginLockout.IsSet() {
		config.LoginLockout = c.LoginLockout.Duration
	}
	if c.ShutdownTimeout.IsSet() {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.LoginMaxAttempts != 0 {
		config.LoginMaxAttempts = c.LoginMaxAttempts
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if len(c.TrustedProxies) > 0 {
		config.TrustedProxies = c.TrustedProxies
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
