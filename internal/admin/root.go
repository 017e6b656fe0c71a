// Package admin implements vipctl, the operator command line of vipkeeper:
// schema migrations, account management and password hashing against the
// configured store.
package admin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/config"
	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipkeeper/internal/server/services"
	"github.com/spf13/cobra"
)

// env is shared by all subcommands.
type env struct {
	cfg       *config.Config
	dsn       string
	secret    string
	openStore func(ctx context.Context, dsn string) (repomanager.RepositoryManager, error)
	stdin     io.Reader
}

// open connects to the store and builds the user service on top of it.
// The caller closes the returned manager.
func (e *env) open(ctx context.Context) (repomanager.RepositoryManager, *services.UserService, error) {
	store, err := e.openStore(ctx, e.dsn)
	if err != nil {
		return nil, nil, err
	}

	secret := e.secret
	if secret == "" {
		// tokens are never issued by these commands without --secret
		secret = "unused"
	}
	codec, err := auth.NewCodec([]byte(secret))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	svc, err := services.NewUserService(store, codec, e.cfg, logging.Nop())
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, svc, nil
}

// NewRootCmd builds the vipctl command tree. cfg supplies the defaults
// for --dsn and --secret.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	return newRootCmd(&env{cfg: cfg, openStore: server.OpenStore, stdin: os.Stdin})
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "vipctl",
		Short: "vipkeeper administration tool",
		Long: `vipctl manages a vipkeeper installation: it runs schema migrations,
creates and lists accounts, grants VIP membership and hashes passwords.`,
		SilenceUsage: true,
	}

	secretDefault := ""
	if !e.cfg.GeneratedSecret {
		secretDefault = e.cfg.SecretKey
	}

	root.PersistentFlags().StringVar(&e.dsn, "dsn", e.cfg.DatabaseDSN, "database DSN (VIPKEEPER_DATABASE_DSN)")
	root.PersistentFlags().StringVar(&e.secret, "secret", secretDefault, "session signing secret (VIPKEEPER_SECRET_KEY)")

	root.AddCommand(newMigrateCmd(e))
	root.AddCommand(newUsersCmd(e))
	root.AddCommand(newHashPasswordCmd(e))
	root.AddCommand(newTokenCmd(e))

	return root
}

// Execute runs vipctl with os.Args and exits non-zero on failure.
func Execute() {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
