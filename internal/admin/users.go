package admin

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/dmitrijs2005/vipkeeper/internal/server/models"
	"github.com/dmitrijs2005/vipkeeper/internal/server/services"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newUsersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUsersCreateCmd(e))
	cmd.AddCommand(newUsersListCmd(e))
	cmd.AddCommand(newUsersSetVIPCmd(e))
	cmd.AddCommand(newUsersDeleteCmd(e))
	return cmd
}

func newUsersCreateCmd(e *env) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Creates an account. The password is read from the terminal without echo,
or as the first line of standard input with --password-stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reader := bufio.NewReader(e.stdin)

			if email == "" {
				v, err := GetSimpleText(reader, "Email", out)
				if err != nil {
					return err
				}
				email = v
			}

			var pw []byte
			if passwordStdin {
				line, err := GetSimpleText(reader, "Password", out)
				if err != nil {
					return err
				}
				pw = []byte(line)
			} else {
				v, err := GetNewPassword(out)
				if err != nil {
					return err
				}
				pw = v
			}
			defer wipe(pw)

			store, svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := svc.Create(cmd.Context(), services.CreateUserInput{Email: email, Password: string(pw)})
			if err != nil {
				return describe(err)
			}

			pterm.Success.WithWriter(out).Printfln("Created %s (id %s)", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from standard input")
	return cmd
}

func newUsersListCmd(e *env) *cobra.Command {
	var filter models.ListFilter

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			store, svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			page, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return describe(err)
			}

			if len(page.Users) == 0 {
				pterm.Info.WithWriter(out).Println("No users found.")
				return nil
			}

			now := time.Now()
			table := pterm.TableData{{"ID", "EMAIL", "VIP", "LEVEL", "VIP UNTIL", "CREATED"}}
			for _, u := range page.Users {
				table = append(table, []string{
					u.ID,
					u.Email,
					vipState(u, now),
					strconv.Itoa(u.VIPLevel),
					formatTime(u.VIPEndTime),
					u.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(table).Render(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d users, page %d, %d per page\n", page.Total, page.Page, page.PageSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Email, "email", "", "only emails containing this text")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", services.DefaultPageSize, "page size")
	return cmd
}

func newUsersSetVIPCmd(e *env) *cobra.Command {
	var (
		level  int
		from   string
		until  string
		revoke bool
	)

	cmd := &cobra.Command{
		Use:   "set-vip <user-id>",
		Short: "Grant or revoke VIP membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := services.UpdateUserInput{}
			isVIP := !revoke
			in.IsVIP = &isVIP

			if cmd.Flags().Changed("level") {
				in.VIPLevel = &level
			}
			if from != "" {
				t, err := time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				in.VIPStartTime = &t
			}
			if until != "" {
				t, err := time.Parse(time.RFC3339, until)
				if err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				in.VIPEndTime = &t
			}

			store, svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := svc.Update(cmd.Context(), args[0], in)
			if err != nil {
				return describe(err)
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("%s: vip=%t level=%d until=%s", u.Email, u.IsVIP, u.VIPLevel, formatTime(u.VIPEndTime))
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 1, "VIP level (0-10)")
	cmd.Flags().StringVar(&from, "from", "", "membership start (RFC 3339)")
	cmd.Flags().StringVar(&until, "until", "", "membership end (RFC 3339)")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "clear the VIP flag instead of setting it")
	return cmd
}

func newUsersDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Deleted %s", args[0])
			return nil
		},
	}
}

func vipState(u *models.User, now time.Time) string {
	switch {
	case u.ActiveVIP(now):
		return "active"
	case u.IsVIP:
		return "inactive"
	default:
		return "-"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// describe turns service errors into operator friendly messages.
func describe(err error) error {
	if ve, ok := common.IsValidation(err); ok {
		return ve
	}
	switch {
	case errors.Is(err, common.ErrorAlreadyExists):
		return errors.New("email already registered")
	case errors.Is(err, common.ErrorNotFound):
		return errors.New("no such user")
	default:
		return err
	}
}
