package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/spf13/cobra"
)

func newEncryptPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-password [password]",
		Short: "Print the storage encryption of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				var err error
				password, err = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).askSecret("password: ")
				if err != nil {
					return err
				}
			}
			enc, err := cryptox.EncryptPasswordForStorage([]byte(password))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), enc)
			return nil
		},
	}
}

func newAccountCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage credentials stored in the vault",
	}
	cmd.AddCommand(
		newAccountAddCmd(root),
		newAccountListCmd(root),
		newAccountRemoveCmd(root),
		newAccountHistoryCmd(root),
	)
	return cmd
}

func newAccountAddCmd(root *rootOptions) *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store or update a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := login.ParsePortal(creds.portal)
			if err != nil {
				return err
			}
			password, qa, err := creds.secrets(newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			svc, err := root.app.Vault()
			if err != nil {
				return err
			}
			acct, err := svc.AddAccount(cmd.Context(), vault.AddAccountParams{
				Portal:   kind,
				Username: creds.account,
				Password: password,
				QA:       qa,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s %s (%s)\n", acct.Portal, acct.Username, acct.ID)
			return nil
		},
	}
	creds.bind(cmd, true)
	return cmd
}

func newAccountListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := root.app.Vault()
			if err != nil {
				return err
			}
			accounts, err := svc.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PORTAL\tACCOUNT\tQUESTION\tUPDATED")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Portal, a.Username, a.Question, a.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newAccountRemoveCmd(root *rootOptions) *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a credential with its session and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := login.ParsePortal(creds.portal)
			if err != nil {
				return err
			}
			svc, err := root.app.Vault()
			if err != nil {
				return err
			}
			if err := svc.RemoveAccount(cmd.Context(), kind, creds.account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", kind, creds.account)
			return nil
		},
	}
	creds.bind(cmd, false)
	return cmd
}

func newAccountHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		creds credentialFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent login attempts for a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := login.ParsePortal(creds.portal)
			if err != nil {
				return err
			}
			svc, err := root.app.Vault()
			if err != nil {
				return err
			}
			attempts, err := svc.Attempts(cmd.Context(), kind, creds.account, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tOUTCOME\tATTEMPTS\tFATAL\tERROR")
			for _, a := range attempts {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", a.CreatedAt.Local().Format(time.DateTime), a.Outcome, a.Attempts, a.Fatal, a.Error)
			}
			return w.Flush()
		},
	}
	creds.bind(cmd, false)
	cmd.Flags().IntVar(&limit, "limit", 20, "number of attempts to show")
	return cmd
}

func newKeygenCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a master key file for session snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = root.app.Config().MasterKeyPath
			}
			if path == "" {
				key, err := cryptox.GenerateMasterKey(cryptox.MasterKeySize)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}
			if err := cryptox.WriteMasterKey(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "master key written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "key file to create (default: --master-key); prints the key when neither is set")
	return cmd
}
