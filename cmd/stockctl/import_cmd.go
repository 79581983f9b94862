package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/stockbook/cmd/stockctl/cli"
	"github.com/odyssey-erp/stockbook/internal/apiclient"
)

type importOptions struct {
	Server  string
	Session string
	Org     string
	User    string
	Policy  string
	Yes     bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an inventory spreadsheet (csv, xlsx, xls)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Session == "" {
				return errors.New("--session is required")
			}
			client, err := apiclient.New(opts.Server, opts.Session)
			if err != nil {
				return err
			}
			code := cli.ImportCommand(cmd.Context(), cli.ImportOptions{
				File:           args[0],
				OrganizationID: opts.Org,
				UserID:         opts.User,
				Policy:         opts.Policy,
				Yes:            opts.Yes,
				Backend:        client,
				Stdin:          cmd.InOrStdin(),
				Stdout:         cmd.OutOrStdout(),
				Stderr:         cmd.ErrOrStderr(),
			})
			if code != cli.ExitOK {
				return exitCode(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", envOr("STOCKBOOK_SERVER", "http://localhost:8080"), "server base URL")
	cmd.Flags().StringVar(&opts.Session, "session", os.Getenv("STOCKBOOK_SESSION"), "session token")
	cmd.Flags().StringVar(&opts.Org, "org", os.Getenv("STOCKBOOK_ORG"), "organization id")
	cmd.Flags().StringVar(&opts.User, "user", os.Getenv("STOCKBOOK_USER"), "user id")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "duplicate policy: skip, add_to_stock or update")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "create new folders without asking")

	return cmd
}
