package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/protocol/ehall"
	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/spf13/cobra"
)

func newAppsCmd(root *rootOptions) *cobra.Command {
	var (
		account string
		search  string
	)

	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List ehall applications for a stored ehall account",
		Long: `Reuses the saved ehall session when it is still logged in, otherwise logs in
with the stored credential first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := root.app.Vault()
			if err != nil {
				return err
			}

			userAgent := root.app.Config().UserAgent
			session, err := svc.Restore(ctx, login.PortalEhall, account, userAgent)
			switch {
			case err == nil && session.IsAuthenticated(ctx):
			case err == nil, errors.Is(err, vault.ErrNotFound), errors.Is(err, vault.ErrNoSealer):
				session, err = svc.Login(ctx, login.PortalEhall, account, vault.LoginOptions{UserAgent: userAgent})
				if err != nil {
					return err
				}
			default:
				return err
			}

			apps, err := ehall.New(session.Transport, root.app.Endpoints().Ehall).AppList(ctx, search)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, a := range apps {
				fmt.Fprintf(w, "%s\t%s\n", a.AppID, a.AppName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "stored ehall account (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&search, "search", "", "filter applications by name")
	return cmd
}
