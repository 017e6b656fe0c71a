package admin

import (
	"bufio"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd(e *env) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the stored digest of a password",
		Long:  `Prints the argon2id digest vipkeeper stores for a password, for seeding rows by hand.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var pw []byte
			if fromStdin {
				line, err := GetSimpleText(bufio.NewReader(e.stdin), "Password", cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				pw = []byte(line)
			} else {
				v, err := GetNewPassword(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				pw = v
			}
			defer wipe(pw)

			digest, err := cryptox.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, digest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from standard input")
	return cmd
}

func newTokenCmd(e *env) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a session token for an account",
		Long: `Issues a session token signed with --secret, for calling the API from scripts.
The server must run with the same secret to accept it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.secret == "" {
				return fmt.Errorf("no secret configured, pass --secret or set VIPKEEPER_SECRET_KEY")
			}

			store, svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}

			codec, err := auth.NewCodec([]byte(e.secret))
			if err != nil {
				return err
			}
			token, exp, err := codec.Issue(u.ID, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", e.cfg.SessionTTL, "token lifetime")
	return cmd
}
