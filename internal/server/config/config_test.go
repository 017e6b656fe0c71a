package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, MemoryDSN, c.DatabaseDSN)
	assert.Equal(t, "", c.SecretKey)
	assert.Equal(t, time.Hour, c.SessionTTL)
	assert.Equal(t, 5, c.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, c.LoginWindow)
	assert.Equal(t, 10*time.Minute, c.LoginLockout)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.False(t, c.TLSEnabled())
}

func TestLoadConfig_GeneratesSecretWhenMissing(t *testing.T) {
	t.Setenv("VIPKEEPER_SECRET_KEY", "")

	c, err := LoadConfig(nil)
	require.NoError(t, err)
	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.True(t, c.GeneratedSecret)
	assert.Len(t, c.SecretKey, 64)
}

func TestLoadConfig_FlagsWinOverEnvAndJSON(t *testing.T) {
	t.Setenv("VIPKEEPER_HTTP_ADDR", ":7000")
	t.Setenv("VIPKEEPER_SECRET_KEY", "from-env")
	t.Setenv("VIPKEEPER_LOGIN_MAX_ATTEMPTS", "3")

	path := writeTempJSON(t, "", "", map[string]any{
		"http_addr":   ":7100",
		"session_ttl": "30m",
	})

	c, err := LoadConfig([]string{"-c", path, "-a", ":7200", "-unknown", "x"})
	require.NoError(t, err)

	assert.Equal(t, ":7200", c.HTTPAddr)
	assert.Equal(t, "from-env", c.SecretKey)
	assert.False(t, c.GeneratedSecret)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
	assert.Equal(t, 3, c.LoginMaxAttempts)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	t.Setenv("VIPKEEPER_SESSION_TTL", "soon")

	_, err := LoadConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VIPKEEPER_SESSION_TTL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "no secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: "secret key is empty"},
		{name: "short ttl", mutate: func(c *Config) { c.SessionTTL = 500 * time.Millisecond }, wantErr: "session ttl"},
		{name: "one second ttl", mutate: func(c *Config) { c.SessionTTL = time.Second }},
		{name: "bad proxy", mutate: func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/33"} }, wantErr: "trusted proxy"},
		{name: "proxy host", mutate: func(c *Config) { c.TrustedProxies = []string{"proxy.local"} }, wantErr: "trusted proxy"},
		{name: "half tls", mutate: func(c *Config) { c.TLSCertFile = "cert.pem" }, wantErr: "tls needs both"},
		{name: "zero attempts", mutate: func(c *Config) { c.LoginMaxAttempts = 0 }, wantErr: "login max attempts"},
		{name: "negative lockout", mutate: func(c *Config) { c.LoginLockout = -time.Second }, wantErr: "login lockout"},
		{name: "no addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantErr: "http address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			c.SecretKey = "k"
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTLSEnabled(t *testing.T) {
	c := defaults()
	c.TLSCertFile, c.TLSKeyFile = "cert.pem", "key.pem"
	assert.True(t, c.TLSEnabled())

	if diff := cmp.Diff([]string(nil), c.AllowedOrigins); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	c := defaults()
	c.TrustedProxies = []string{"10.1.2.3/8", "192.0.2.10", "::ffff:198.51.100.1", "2001:db8::/32"}

	got, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)

	want := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
		netip.MustParsePrefix("198.51.100.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}
	assert.Equal(t, want, got)

	c.TrustedProxies = nil
	got, err = c.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Empty(t, got)
}
