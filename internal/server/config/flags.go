package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/vipkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g., ":8080")
//	-d string          PostgreSQL DSN or "memory"
//	-s string          session signing secret
//	-t duration        session lifetime (e.g., "1h")
//	-tls-cert string   TLS certificate file
//	-tls-key string    TLS private key file
//	-log-level string  debug, info, warn or error
//	-log-format string json or text
//	-origins string    comma separated CORS origins
//	-trusted-proxies string
//	                   comma separated proxy IPs or CIDRs
//
// Arguments that are not listed are filtered out first with
// flagx.FilterArgs, so -c and flags of other components pass through.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-tls-cert", "-tls-key", "-log-level", "-log-format", "-origins", "-trusted-proxies"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.SessionTTL, "t", config.SessionTTL, "session token lifetime")
	fs.StringVar(&config.TLSCertFile, "tls-cert", config.TLSCertFile, "TLS certificate file")
	fs.StringVar(&config.TLSKeyFile, "tls-key", config.TLSKeyFile, "TLS key file")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text)")
	origins := fs.String("origins", "", "comma separated CORS origins")
	proxies := fs.String("trusted-proxies", "", "comma separated trusted proxy IPs or CIDRs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *origins != "" {
		config.AllowedOrigins = splitList(*origins)
	}
	if *proxies != "" {
		config.TrustedProxies = splitList(*proxies)
	}
	return nil
}
