package admin

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening a Postgres store migrates it
			store, err := e.openStore(cmd.Context(), e.dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Database schema is up to date.")
			return nil
		},
	}
}
