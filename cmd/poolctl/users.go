package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	authapp "github.com/callmask/golang_services/internal/auth_service/app"
	"github.com/callmask/golang_services/internal/auth_service/domain"
	authpg "github.com/callmask/golang_services/internal/auth_service/repository/postgres"
	"github.com/callmask/golang_services/internal/platform/database"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errUsernameRequired = errors.New("--username is required")

type addUserOptions struct {
	username   string
	password   string
	realNumber string
	scope      string
}

func newAddUserCmd(c *cli) *cobra.Command {
	opts := &addUserOptions{}
	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Create a user allowed to log in to the public API",
		Long: `Create a user. The password is hashed with bcrypt before it is stored.
When --password is omitted it is read from the terminal, or from the first
line of stdin when stdin is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" {
				return errUsernameRequired
			}
			scope, err := domain.NormalizeScope(opts.scope)
			if err != nil {
				return err
			}
			password := opts.password
			if password == "" {
				password, err = readPassword(cmd)
				if err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.EnsureSchema(ctx, db); err != nil {
				return err
			}

			provisioner := authapp.NewCredentialProvisioner(authpg.NewPgCredentialRepository(db), c.logger)
			cred, err := provisioner.AddUser(ctx, opts.username, password, opts.realNumber, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %q (id %d, scope %s).\n", cred.Username, cred.ID, cred.Scope)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "", "login name, 3-50 letters, digits or underscores")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&opts.realNumber, "real-number", "", "the user's own phone number, optional")
	cmd.Flags().StringVar(&opts.scope, "scope", domain.ScopeUser.String(), "user or admin")
	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return readPasswordLine(cmd.InOrStdin())
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
